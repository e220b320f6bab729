package cli

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/kubev2v/vmware-inventory/internal/config"
	"github.com/kubev2v/vmware-inventory/internal/inventory"
	"github.com/kubev2v/vmware-inventory/internal/vsphere"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/vmware/govmomi/simulator"
)

var _ = Describe("inventory command", Ordered, func() {
	var (
		model *simulator.Model
		srv   *simulator.Server
		cfg   *config.Config
		out   *bytes.Buffer
	)

	BeforeAll(func() {
		model = simulator.VPX()
		Expect(model.Create()).To(Succeed())
		srv = model.Service.NewServer()
	})

	AfterAll(func() {
		srv.Close()
		model.Remove()
	})

	BeforeEach(func() {
		password, _ := srv.URL.User.Password()
		cfg = &config.Config{
			LogLevel: "info",
			VCenter: config.VCenter{
				Host:       srv.URL.Scheme + "://" + srv.URL.Host,
				User:       srv.URL.User.Username(),
				Password:   password,
				Port:       443,
				Datacenter: "DC0",
				BatchSize:  2,
				TagGroups:  true,
			},
		}
		out = &bytes.Buffer{}
	})

	newOptions := func() *InventoryOptions {
		o := DefaultInventoryOptions()
		o.Config = cfg
		o.out = out
		return o
	}

	It("prints the full inventory", func() {
		o := newOptions()
		o.List = true
		Expect(o.Validate(nil)).To(Succeed())
		Expect(o.Run(context.TODO(), nil)).To(Succeed())

		doc := inventory.NewDocument()
		Expect(json.Unmarshal(out.Bytes(), doc)).To(Succeed())
		Expect(doc.Names()).To(ConsistOf("DC0_H0_VM0", "DC0_H0_VM1", "DC0_C0_RP0_VM0", "DC0_C0_RP0_VM1"))
		Expect(doc.Metadata).NotTo(BeNil())
		Expect(doc.Metadata.Datacenter).To(Equal("DC0"))
		Expect(doc.Metadata.TotalVMs).To(Equal(4))
		Expect(doc.Metadata.RunID).NotTo(BeEmpty())
	})

	It("prints a single host", func() {
		o := newOptions()
		o.Host = "DC0_H0_VM0"

		Expect(o.Run(context.TODO(), nil)).To(Succeed())

		var vars map[string]any
		Expect(json.Unmarshal(out.Bytes(), &vars)).To(Succeed())
		Expect(vars).To(HaveKeyWithValue(inventory.VarName, "DC0_H0_VM0"))
	})

	It("prints an empty object for an unknown host", func() {
		o := newOptions()
		o.Host = "nope"

		Expect(o.Run(context.TODO(), nil)).To(Succeed())
		Expect(out.String()).To(MatchJSON(`{}`))
	})

	It("prints an empty but valid document when the datacenter is unknown", func() {
		cfg.VCenter.Datacenter = "DC9"
		o := newOptions()
		o.List = true

		err := o.Run(context.TODO(), nil)
		Expect(err).To(MatchError(vsphere.ErrDatacenterNotFound))

		var doc map[string]any
		Expect(json.Unmarshal(out.Bytes(), &doc)).To(Succeed())
		Expect(doc).To(HaveKey("_meta"))
		Expect(doc["all"]).To(Equal(map[string]any{"children": []any{}}))
		Expect(doc).To(HaveKeyWithValue(inventory.GroupUngrouped, map[string]any{"hosts": []any{}}))
	})

	It("prints the same empty document when the configuration is incomplete", func() {
		cfg.VCenter.Password = ""
		o := newOptions()
		o.List = true
		Expect(o.Validate(nil)).NotTo(Succeed())

		o.printEmpty()

		var doc map[string]any
		Expect(json.Unmarshal(out.Bytes(), &doc)).To(Succeed())
		Expect(doc).To(HaveKey("_meta"))
		Expect(doc).To(HaveKeyWithValue(inventory.GroupUngrouped, map[string]any{"hosts": []any{}}))
	})

	It("rejects --list together with --host", func() {
		o := newOptions()
		o.List = true
		o.Host = "DC0_H0_VM0"
		Expect(o.Validate(nil)).To(MatchError(ContainSubstring("mutually exclusive")))
	})

	It("rejects an incomplete vCenter configuration", func() {
		cfg.VCenter.Password = ""
		o := newOptions()
		o.List = true
		Expect(o.Validate(nil)).To(MatchError(ContainSubstring("VCenter.Password")))
	})
})

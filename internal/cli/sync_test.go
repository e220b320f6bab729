package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/kubev2v/vmware-inventory/internal/config"
	"github.com/kubev2v/vmware-inventory/internal/inventory"
	"github.com/kubev2v/vmware-inventory/internal/netbox"
	"github.com/kubev2v/vmware-inventory/internal/netbox/netboxtest"
	"github.com/kubev2v/vmware-inventory/internal/reconcile"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("sync command", func() {
	var (
		fake *netboxtest.Server
		cfg  *config.Config
		out  *bytes.Buffer
		file string
	)

	BeforeEach(func() {
		fake = netboxtest.NewServer()
		cfg = &config.Config{
			LogLevel: "info",
			NetBox: config.NetBox{
				URL:                fake.URL,
				Token:              "token",
				DefaultSite:        "ATI-SLC-HCI",
				DefaultTenant:      "ATI",
				DefaultClusterType: "VMware vSphere",
				DefaultRole:        "server",
				DefaultCluster:     "Default Cluster",
				Workers:            2,
			},
		}
		out = &bytes.Buffer{}

		doc := inventory.NewDocument()
		doc.HostVars["APP01"] = inventory.HostVars{inventory.VarName: "APP01", inventory.VarPowerState: "poweredOn"}
		doc.HostVars["APP02"] = inventory.HostVars{inventory.VarName: "APP02", inventory.VarCluster: "HCI"}
		doc.HostVars["localhost"] = inventory.HostVars{inventory.VarName: "localhost"}
		data, err := json.Marshal(doc)
		Expect(err).To(BeNil())

		file = filepath.Join(GinkgoT().TempDir(), "inventory.json")
		Expect(os.WriteFile(file, data, 0o600)).To(Succeed())
	})

	AfterEach(func() {
		fake.Close()
	})

	newOptions := func() *SyncOptions {
		o := DefaultSyncOptions()
		o.Config = cfg
		o.out = out
		o.FromFile = file
		return o
	}

	It("reconciles a generated document", func() {
		o := newOptions()
		Expect(o.Validate(nil)).To(Succeed())
		Expect(o.Run(context.TODO(), nil)).To(Succeed())

		var report reconcile.Report
		Expect(json.Unmarshal(out.Bytes(), &report)).To(Succeed())
		Expect(report.Total).To(Equal(3))
		Expect(report.Synced).To(Equal(2))
		Expect(report.Skipped).To(Equal(1))
		Expect(report.RunID).NotTo(BeEmpty())
		Expect(fake.Objects(netbox.EndpointVirtualMachines)).To(HaveLen(2))
	})

	It("does not write on a dry run", func() {
		o := newOptions()
		o.DryRun = true
		Expect(o.Run(context.TODO(), nil)).To(Succeed())

		var report reconcile.Report
		Expect(json.Unmarshal(out.Bytes(), &report)).To(Succeed())
		Expect(report.DryRun).To(BeTrue())
		Expect(report.Synced).To(Equal(2))
		Expect(fake.Writes("")).To(BeEmpty())
	})

	It("fails on an unreadable document", func() {
		o := newOptions()
		o.FromFile = filepath.Join(GinkgoT().TempDir(), "missing.json")
		Expect(o.Run(context.TODO(), nil)).To(MatchError(ContainSubstring("reading inventory document")))
	})

	It("requires the controller when not reading a file", func() {
		o := newOptions()
		o.FromFile = ""
		Expect(o.Validate(nil)).To(MatchError(ContainSubstring("AWX.URL")))
	})

	It("fails when the controller cannot list hosts", func() {
		awx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"boom"}`, http.StatusBadGateway)
		}))
		defer awx.Close()

		cfg.AWX = config.AWX{URL: awx.URL, Token: "t", InventoryID: 1}
		o := newOptions()
		o.FromFile = ""

		Expect(o.Run(context.TODO(), nil)).To(MatchError(ContainSubstring("sync failed")))
		Expect(fake.Writes("")).To(BeEmpty())
	})
})

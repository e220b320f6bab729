package inventory

import (
	"encoding/json"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ensureSerializable", func() {
	It("leaves clean hosts untouched", func() {
		hv := map[string]HostVars{"a": {VarName: "a", VarCPUCount: 2}}
		Expect(ensureSerializable(hv)).To(BeEmpty())
		Expect(hv["a"]).To(HaveLen(2))
	})

	It("repairs non finite numbers", func() {
		hv := map[string]HostVars{"a": {VarName: "a", VarMemoryGB: math.NaN(), VarDiskTotalGB: math.Inf(1)}}
		Expect(ensureSerializable(hv)).To(BeEmpty())
		Expect(hv["a"][VarMemoryGB]).To(Equal(0.0))
		Expect(hv["a"][VarDiskTotalGB]).To(Equal(0.0))

		_, err := json.Marshal(hv)
		Expect(err).To(BeNil())
	})

	It("removes optional fields that cannot be encoded", func() {
		hv := map[string]HostVars{"a": {VarName: "a", VarFolder: make(chan int)}}
		Expect(ensureSerializable(hv)).To(BeEmpty())
		Expect(hv["a"]).NotTo(HaveKey(VarFolder))
		Expect(hv["a"]).To(HaveKey(VarName))
	})

	It("drops a host whose required fields cannot be encoded", func() {
		hv := map[string]HostVars{
			"good": {VarName: "good"},
			"bad":  {VarName: func() {}},
		}
		dropped := ensureSerializable(hv)
		Expect(dropped).To(Equal(map[string]bool{"bad": true}))
		Expect(hv).To(HaveKey("good"))
		Expect(hv).NotTo(HaveKey("bad"))
	})
})

var _ = Describe("assembler repair", func() {
	It("repairs hosts before emitting the document", func() {
		rec := ClassifiedVM{VM: VM{Name: "nan", MemoryGB: math.NaN()}, Environment: Unknown, CPUTier: TierLow, MemoryTier: TierMinimal, DiskTier: TierMinimal}
		doc := Assemble([]ClassifiedVM{rec}, AssembleOptions{})

		Expect(doc.HostVars).To(HaveKey("nan"))
		Expect(doc.Host("nan")[VarMemoryGB]).To(Equal(0.0))
		_, err := json.Marshal(doc)
		Expect(err).To(BeNil())
	})

	It("removes a dropped host from every group", func() {
		original := hostVarsOf
		DeferCleanup(func() { hostVarsOf = original })
		hostVarsOf = func(c ClassifiedVM) HostVars {
			h := original(c)
			if c.Name == "broken" {
				h[VarName] = func() {}
			}
			return h
		}

		records := []ClassifiedVM{
			{VM: VM{Name: "healthy"}, Environment: Production, CPUTier: TierLow, MemoryTier: TierMinimal, DiskTier: TierMinimal},
			{VM: VM{Name: "broken"}, Environment: Production, CPUTier: TierLow, MemoryTier: TierMinimal, DiskTier: TierMinimal},
		}
		doc := Assemble(records, AssembleOptions{})

		Expect(doc.HostVars).To(HaveKey("healthy"))
		Expect(doc.HostVars).NotTo(HaveKey("broken"))
		for name, g := range doc.Groups {
			Expect(g.Hosts).NotTo(ContainElement("broken"), "group %s", name)
		}
		Expect(doc.Groups).To(HaveKey(GroupVMware))
		Expect(doc.Groups[GroupVMware].Hosts).To(Equal([]string{"healthy"}))
		Expect(doc.Metadata.TotalVMs).To(Equal(1))
		for _, child := range doc.Children {
			Expect(doc.Groups[child].Hosts).NotTo(BeEmpty())
		}

		_, err := json.Marshal(doc)
		Expect(err).To(BeNil())
	})
})

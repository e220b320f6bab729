package inventory_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kubev2v/vmware-inventory/internal/inventory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func classified(name string, mutate func(*inventory.RawVM)) inventory.ClassifiedVM {
	raw := inventory.RawVM{Name: name}
	if mutate != nil {
		mutate(&raw)
	}
	vm, err := inventory.Normalize(raw, 1, inventory.NormalizeOptions{})
	Expect(err).To(BeNil())
	return inventory.Classify(vm)
}

var fixedClock = func() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
}

var _ = Describe("assembler", func() {
	var opts inventory.AssembleOptions

	BeforeEach(func() {
		opts = inventory.AssembleOptions{
			TagGroups:   true,
			VCenterHost: "vcenter.example.com",
			Datacenter:  "DC0",
			RunID:       "run-1",
			Now:         fixedClock,
		}
	})

	Context("membership", func() {
		It("places every host in the groups derivable from its hostvars", func() {
			records := []inventory.ClassifiedVM{
				classified("WEB-PROD-01", func(r *inventory.RawVM) {
					*r = webProd01()
				}),
				classified("win-dev-02", func(r *inventory.RawVM) {
					r.Config = &inventory.RawConfig{GuestFullName: "Microsoft Windows Server 2022"}
					r.Summary = &inventory.RawSummary{NumCPU: 4, MemoryMB: 8192}
					r.Runtime = &inventory.RawRuntime{PowerState: "poweredOff"}
					r.Guest = &inventory.RawGuest{ToolsStatus: "toolsOld"}
					r.Tags = []inventory.Tag{{Name: "Web Server", Category: "Role"}}
				}),
				classified("db-stg", func(r *inventory.RawVM) {
					r.Runtime = &inventory.RawRuntime{PowerState: "suspended"}
					r.Guest = &inventory.RawGuest{ToolsStatus: "toolsOk"}
					r.Tags = []inventory.Tag{{Name: "Web Server", Category: "Role"}, {Name: "DB", Category: "Role"}}
				}),
			}

			doc := inventory.Assemble(records, opts)
			Expect(doc.HostVars).To(HaveLen(3))

			for name, vars := range doc.HostVars {
				want := inventory.GroupsFromHostVars(vars, true)
				for _, g := range want {
					Expect(doc.Groups).To(HaveKey(g))
					Expect(doc.Groups[g].Hosts).To(ContainElement(name), "group %s", g)
				}
				for g, group := range doc.Groups {
					if g == inventory.GroupUngrouped {
						continue
					}
					if contains(group.Hosts, name) {
						Expect(want).To(ContainElement(g), "host %s in %s", name, g)
					}
				}
			}

			Expect(doc.Groups["tag_web_server"].Hosts).To(Equal([]string{"win-dev-02", "db-stg"}))
			Expect(doc.Groups["category_role"].Hosts).To(Equal([]string{"win-dev-02", "db-stg"}))
			Expect(doc.Groups["tag_db"].Hosts).To(Equal([]string{"db-stg"}))
			Expect(doc.Groups[inventory.GroupToolsOutdated].Hosts).To(Equal([]string{"win-dev-02"}))
			Expect(doc.Groups[inventory.GroupToolsOK].Hosts).To(Equal([]string{"db-stg"}))
		})

		It("omits tag groups when disabled", func() {
			opts.TagGroups = false
			doc := inventory.Assemble([]inventory.ClassifiedVM{
				classified("tagged", func(r *inventory.RawVM) {
					r.Tags = []inventory.Tag{{Name: "Web", Category: "Role"}}
				}),
			}, opts)

			Expect(doc.Groups).NotTo(HaveKey("tag_web"))
			Expect(doc.Groups).NotTo(HaveKey("category_role"))
		})

		It("disambiguates duplicate names", func() {
			doc := inventory.Assemble([]inventory.ClassifiedVM{
				classified("app", nil),
				classified("app", nil),
				classified("app", nil),
			}, opts)

			Expect(doc.Names()).To(Equal([]string{"app", "app_2", "app_3"}))
			Expect(doc.Host("app_2").String(inventory.VarName)).To(Equal("app_2"))
		})
	})

	Context("document shape", func() {
		It("elides empty groups but always carries ungrouped", func() {
			doc := inventory.Assemble([]inventory.ClassifiedVM{classified("WEB-PROD-01", func(r *inventory.RawVM) {
				*r = webProd01()
			})}, opts)

			Expect(doc.Groups).NotTo(HaveKey(inventory.GroupWindows))
			Expect(doc.Groups).NotTo(HaveKey(inventory.GroupPoweredOff))
			Expect(doc.Groups).To(HaveKey(inventory.GroupUngrouped))
			Expect(doc.Groups[inventory.GroupUngrouped].Hosts).To(BeEmpty())
			Expect(doc.Children).NotTo(ContainElement(inventory.GroupUngrouped))
			for _, child := range doc.Children {
				Expect(doc.Groups[child].Hosts).NotTo(BeEmpty())
			}
		})

		It("produces a valid document for an empty run", func() {
			doc := inventory.Assemble(nil, opts)

			data, err := json.Marshal(doc)
			Expect(err).To(BeNil())

			var decoded map[string]any
			Expect(json.Unmarshal(data, &decoded)).To(Succeed())
			Expect(decoded).To(HaveKey("_meta"))
			Expect(decoded["all"]).To(Equal(map[string]any{"children": []any{}}))
			Expect(decoded[inventory.GroupUngrouped]).To(Equal(map[string]any{"hosts": []any{}}))
			Expect(doc.Metadata.TotalVMs).To(Equal(0))
		})

		It("fills run metadata", func() {
			doc := inventory.Assemble([]inventory.ClassifiedVM{classified("a", nil), classified("b", nil)}, opts)

			Expect(doc.Metadata.VCenterHost).To(Equal("vcenter.example.com"))
			Expect(doc.Metadata.Datacenter).To(Equal("DC0"))
			Expect(doc.Metadata.TotalVMs).To(Equal(2))
			Expect(doc.Metadata.GeneratedAt).To(Equal("2025-03-14 09:26:53"))
			Expect(doc.Metadata.GroupsCreated).To(Equal(len(doc.Children)))
			Expect(doc.Metadata.RunID).To(Equal("run-1"))
		})

		It("round trips through JSON", func() {
			doc := inventory.Assemble([]inventory.ClassifiedVM{
				classified("WEB-PROD-01", func(r *inventory.RawVM) { *r = webProd01() }),
				classified("tagged", func(r *inventory.RawVM) {
					r.Tags = []inventory.Tag{{Name: "Web", Category: "Role", Description: "front"}}
				}),
			}, opts)

			data, err := json.Marshal(doc)
			Expect(err).To(BeNil())

			decoded := inventory.NewDocument()
			Expect(json.Unmarshal(data, decoded)).To(Succeed())
			Expect(decoded.Names()).To(Equal(doc.Names()))
			Expect(decoded.Children).To(Equal(doc.Children))
			Expect(decoded.Metadata).To(Equal(doc.Metadata))
			for name, g := range doc.Groups {
				Expect(decoded.Groups[name].Hosts).To(Equal(g.Hosts))
			}

			web := decoded.Host("WEB-PROD-01")
			Expect(web.String(inventory.VarAnsibleHost)).To(Equal("10.1.1.5"))
			Expect(web.Strings(inventory.VarIPAddresses)).To(Equal([]string{"10.1.1.5"}))
			Expect(web[inventory.VarUUID]).To(BeNil())
			Expect(inventory.GroupsFromHostVars(web, true)).To(Equal(inventory.GroupsFromHostVars(doc.Host("WEB-PROD-01"), true)))

			tagged := decoded.Host("tagged")
			Expect(tagged.Tags()).To(Equal([]inventory.Tag{{Name: "Web", Category: "Role", Description: "front"}}))
		})

		It("writes _meta and all before the groups", func() {
			doc := inventory.Assemble([]inventory.ClassifiedVM{classified("a", nil)}, opts)
			data, err := json.Marshal(doc)
			Expect(err).To(BeNil())
			Expect(string(data)).To(HavePrefix(`{"_meta":`))
			Expect(string(data)).To(ContainSubstring(`},"all":{"children":[`))
		})

		It("returns empty variables for unknown hosts", func() {
			doc := inventory.Assemble(nil, opts)
			Expect(doc.Host("missing")).To(BeEmpty())
		})
	})
})

var _ = Describe("synthesize", func() {
	It("excludes templates from hostvars and groups", func() {
		raws := []inventory.RawVM{
			webProd01(),
			{Name: "template-rhel9", Summary: &inventory.RawSummary{NumCPU: 2}},
			{Name: "golden", Config: &inventory.RawConfig{Template: true}},
		}

		doc, stats, err := inventory.Synthesize(context.TODO(), raws, inventory.Options{
			Assemble: inventory.AssembleOptions{TagGroups: true, Now: fixedClock},
		})
		Expect(err).To(BeNil())
		Expect(stats).To(Equal(inventory.Stats{Seen: 3, Emitted: 1, Skipped: 2}))
		Expect(doc.Names()).To(Equal([]string{"WEB-PROD-01"}))
		for _, g := range doc.Groups {
			Expect(g.Hosts).NotTo(ContainElement("template-rhel9"))
			Expect(g.Hosts).NotTo(ContainElement("golden"))
		}
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.TODO())
		cancel()

		doc, _, err := inventory.Synthesize(ctx, []inventory.RawVM{webProd01()}, inventory.Options{})
		Expect(err).To(MatchError(context.Canceled))
		Expect(doc).To(BeNil())
	})

	It("reports every record through the builder", func() {
		b := inventory.NewBuilder(inventory.Options{})
		Expect(b.Add(webProd01()).Skip).To(BeNil())
		Expect(b.Add(inventory.RawVM{Name: "template"}).Skip).To(MatchError(inventory.ErrTemplate))
		Expect(b.Stats().Seen).To(Equal(2))
		Expect(b.Build().Names()).To(Equal([]string{"WEB-PROD-01"}))
	})
})

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

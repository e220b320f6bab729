package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kubev2v/vmware-inventory/internal/inventory"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("metrics", func() {
	It("counts processed VMs by result", func() {
		before := testutil.ToFloat64(vmsProcessedTotalMetric.With(prometheus.Labels{resultLabel: ResultSkipped}))
		IncreaseVMsProcessedMetric(ResultSkipped, 3)
		Expect(testutil.ToFloat64(vmsProcessedTotalMetric.With(prometheus.Labels{resultLabel: ResultSkipped}))).To(Equal(before + 3))
	})

	It("counts synced hosts by result", func() {
		before := testutil.ToFloat64(syncHostsTotalMetric.With(prometheus.Labels{resultLabel: ResultFailed}))
		IncreaseSyncHostsMetric(ResultFailed, 1)
		Expect(testutil.ToFloat64(syncHostsTotalMetric.With(prometheus.Labels{resultLabel: ResultFailed}))).To(Equal(before + 1))
	})

	It("exposes the last document", func() {
		doc := inventory.Assemble([]inventory.ClassifiedVM{
			inventory.Classify(inventory.VM{Name: "app-prod"}),
			inventory.Classify(inventory.VM{Name: "app-dev"}),
		}, inventory.AssembleOptions{})
		RecordDocument(doc)

		Expect(testutil.ToFloat64(inventoryGroupsMetric)).To(Equal(float64(len(doc.Children))))

		expected := `
# HELP vmware_inventory_vms_total Total number of vms in the last inventory.
# TYPE vmware_inventory_vms_total gauge
vmware_inventory_vms_total 2
`
		Expect(testutil.CollectAndCompare(lastDocument, strings.NewReader(expected), "vmware_inventory_vms_total")).To(Succeed())
		Expect(testutil.CollectAndCount(lastDocument, "vmware_inventory_vms_by_environment_total")).To(Equal(2))
	})

	It("writes a textfile", func() {
		ObserveSyncDuration(2 * time.Second)
		IncreaseVMsProcessedMetric(ResultEmitted, 0)

		file := filepath.Join(GinkgoT().TempDir(), "vmware_inventory.prom")
		Expect(WriteTextfile(file)).To(Succeed())

		data, err := os.ReadFile(file)
		Expect(err).To(BeNil())
		Expect(string(data)).To(ContainSubstring("vmware_inventory_sync_duration_seconds_count"))
		Expect(string(data)).To(ContainSubstring("vmware_inventory_vms_processed_total"))
	})
})

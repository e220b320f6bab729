package metrics

import (
	"fmt"
	"sync"

	"github.com/kubev2v/vmware-inventory/internal/inventory"
	"github.com/prometheus/client_golang/prometheus"
)

// documentStatsCollector exposes per-group host counts of the last inventory
// handed to it.
type documentStatsCollector struct {
	mu  sync.RWMutex
	doc *inventory.Document

	totalVm      *prometheus.Desc
	hostsByGroup *prometheus.Desc
	vmsByEnv     *prometheus.Desc
}

var lastDocument = newDocumentStatsCollector()

func newDocumentStatsCollector() *documentStatsCollector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_%s", vmwareInventory, name)
	}

	return &documentStatsCollector{
		totalVm: prometheus.NewDesc(
			fqName("vms_total"),
			"Total number of vms in the last inventory.",
			nil,
			prometheus.Labels{},
		),
		hostsByGroup: prometheus.NewDesc(
			fqName("group_hosts"),
			"Number of hosts per group in the last inventory.",
			[]string{"group"},
			prometheus.Labels{},
		),
		vmsByEnv: prometheus.NewDesc(
			fqName("vms_by_environment_total"),
			"Total VMs by classified environment.",
			[]string{"environment"},
			prometheus.Labels{},
		),
	}
}

// RecordDocument makes doc the source of the document gauges.
func RecordDocument(doc *inventory.Document) {
	lastDocument.mu.Lock()
	defer lastDocument.mu.Unlock()
	lastDocument.doc = doc
	if doc != nil {
		UpdateInventoryGroupsMetric(len(doc.Children))
	}
}

func (c *documentStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalVm
	ch <- c.hostsByGroup
	ch <- c.vmsByEnv
}

// Collect implements Collector.
func (c *documentStatsCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.doc == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.totalVm, prometheus.GaugeValue, float64(len(c.doc.HostVars)))

	for name, g := range c.doc.Groups {
		ch <- prometheus.MustNewConstMetric(c.hostsByGroup, prometheus.GaugeValue, float64(len(g.Hosts)), name)
	}

	byEnv := map[string]int{}
	for _, vars := range c.doc.HostVars {
		byEnv[vars.String(inventory.VarEnvironment)]++
	}
	for env, total := range byEnv {
		ch <- prometheus.MustNewConstMetric(c.vmsByEnv, prometheus.GaugeValue, float64(total), env)
	}
}

func init() {
	prometheus.MustRegister(lastDocument)
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	vmwareInventory = "vmware_inventory"

	// Inventory metrics
	vmsProcessedTotal = "vms_processed_total"
	inventoryGroups   = "groups"

	// Sync metrics
	syncHostsTotal      = "sync_hosts_total"
	syncDurationSeconds = "sync_duration_seconds"

	// Labels
	resultLabel = "result"
)

// Label values for the result label.
const (
	ResultEmitted = "emitted"
	ResultSkipped = "skipped"
	ResultSynced  = "synced"
	ResultFailed  = "failed"
)

var resultLabels = []string{
	resultLabel,
}

/**
* Metrics definition
**/
var vmsProcessedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vmwareInventory,
		Name:      vmsProcessedTotal,
		Help:      "number of raw VM records processed, by outcome",
	},
	resultLabels,
)

var inventoryGroupsMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: vmwareInventory,
		Name:      inventoryGroups,
		Help:      "number of non-empty groups in the last generated inventory",
	},
)

var syncHostsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vmwareInventory,
		Name:      syncHostsTotal,
		Help:      "number of hosts handled by the asset-management sync, by outcome",
	},
	resultLabels,
)

var syncDurationSecondsMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Subsystem: vmwareInventory,
		Name:      syncDurationSeconds,
		Help:      "wall-clock duration of sync runs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
)

func IncreaseVMsProcessedMetric(result string, count int) {
	labels := prometheus.Labels{
		resultLabel: result,
	}
	vmsProcessedTotalMetric.With(labels).Add(float64(count))
}

func UpdateInventoryGroupsMetric(count int) {
	inventoryGroupsMetric.Set(float64(count))
}

func IncreaseSyncHostsMetric(result string, count int) {
	labels := prometheus.Labels{
		resultLabel: result,
	}
	syncHostsTotalMetric.With(labels).Add(float64(count))
}

func ObserveSyncDuration(d time.Duration) {
	syncDurationSecondsMetric.Observe(d.Seconds())
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, prometheus.DefaultGatherer)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(vmsProcessedTotalMetric)
	prometheus.MustRegister(inventoryGroupsMetric)
	prometheus.MustRegister(syncHostsTotalMetric)
	prometheus.MustRegister(syncDurationSecondsMetric)
}

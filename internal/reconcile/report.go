package reconcile

import (
	"sort"
	"time"

	"github.com/kubev2v/vmware-inventory/pkg/metrics"
)

// Report summarizes one sync run. Synced, Failed and Skipped partition Total.
type Report struct {
	RunID        string   `json:"run_id"`
	DryRun       bool     `json:"dry_run"`
	Total        int      `json:"total_hosts"`
	Synced       int      `json:"synced_vms"`
	Failed       int      `json:"failed_vms"`
	Skipped      int      `json:"skipped_hosts"`
	SyncedHosts  []string `json:"synced"`
	FailedHosts  []string `json:"failed"`
	SkippedHosts []string `json:"skipped"`

	Duration time.Duration `json:"-"`
	// DurationSeconds is Duration as printed in reports.
	DurationSeconds float64 `json:"duration"`
}

func newReport(runID string, total int, dryRun bool) *Report {
	return &Report{
		RunID:        runID,
		DryRun:       dryRun,
		Total:        total,
		SyncedHosts:  []string{},
		FailedHosts:  []string{},
		SkippedHosts: []string{},
	}
}

func (r *Report) synced(name string) {
	r.Synced++
	r.SyncedHosts = append(r.SyncedHosts, name)
}

func (r *Report) failed(name string) {
	r.Failed++
	r.FailedHosts = append(r.FailedHosts, name)
}

func (r *Report) skipped(name string) {
	r.Skipped++
	r.SkippedHosts = append(r.SkippedHosts, name)
}

func (r *Report) sort() {
	sort.Strings(r.SyncedHosts)
	sort.Strings(r.FailedHosts)
	sort.Strings(r.SkippedHosts)
}

func (r *Report) record() {
	if r.DryRun {
		return
	}
	metrics.IncreaseSyncHostsMetric(metrics.ResultSynced, r.Synced)
	metrics.IncreaseSyncHostsMetric(metrics.ResultFailed, r.Failed)
	metrics.IncreaseSyncHostsMetric(metrics.ResultSkipped, r.Skipped)
}

// Processed is the number of hosts that reached a verdict. It equals Total
// unless the run was interrupted.
func (r *Report) Processed() int {
	return r.Synced + r.Failed + r.Skipped
}

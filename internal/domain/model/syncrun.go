package model

import "time"

// ServiceResult is the outcome for one service kind within a sync run.
type ServiceResult struct {
	Service   ServiceKind   `json:"service"`
	Status    ServiceStatus `json:"status"`
	Count     int           `json:"count"`
	Upserted  int           `json:"upserted"`
	Removed   int           `json:"removed"`
	Attempts  int           `json:"attempts"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
}

// Failed reports whether this service did not reach the store.
func (r ServiceResult) Failed() bool {
	return r.Status == ServiceFailed
}

// SyncRun is one end-to-end orchestration attempt for an account. It is
// created when a sync starts and is immutable once EndedAt is set.
type SyncRun struct {
	ID        string
	AccountID string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    SyncStatus
	Message   string
	Results   []ServiceResult
}

// Synced sums resource counts over services that succeeded or were mocked.
func (r SyncRun) Synced() int {
	var n int
	for _, res := range r.Results {
		if !res.Failed() {
			n += res.Count
		}
	}
	return n
}

// OverallStatus derives the run status from per-service results. A run with
// no failed services is completed, a run where every service failed is
// failed, anything in between is partial.
func OverallStatus(results []ServiceResult) SyncStatus {
	var failed int
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	switch {
	case len(results) == 0 || failed == len(results):
		return SyncFailed
	case failed == 0:
		return SyncCompleted
	default:
		return SyncPartial
	}
}

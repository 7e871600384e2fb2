// Package metrics records counters and step durations for a migration run.
// Until SetBackend is called every Record* call is a no-op. The Pushgateway
// and Datadog backends live in subpackages.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by all backends.
const (
	StepTotal           = "docmigrate_step_total"
	StepDurationSeconds = "docmigrate_step_duration_seconds"
	RecordsTotal        = "docmigrate_records_total"
	BatchesTotal        = "docmigrate_batches_total"
)

// Labels tag a sample, e.g. job, step, status.
type Labels map[string]string

// Backend receives every sample recorded by this package.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration in seconds.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush is called once when the run ends.
	Flush() error
}

// nopBackend drops everything.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend replaces the process-wide backend. A nil b is ignored.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend.
func Flush() error {
	return current().Flush()
}

// RecordStep records latency plus success/failure for one step of a run
// (connect, resolve, flush, finalize).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow adds delta to the records counter for kind (rows, documents, audited).
//
// Kinds used by the pipeline:
//   - "rows"        rows read from the source
//   - "documents"   documents committed to the document store
//   - "audited"     audit rows appended to the analytical store
//   - "reappeared"  keys re-created after an earlier flush
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the flushed-batch counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

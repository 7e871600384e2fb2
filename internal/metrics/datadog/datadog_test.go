package datadog

import (
	"sync"
	"testing"

	"docmigrate/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/google/go-cmp/cmp"
)

// spyClient records the calls the backend makes. Methods the backend does not
// use fall through to the embedded nil interface and would panic.
type spyClient struct {
	statsd.ClientInterface

	mu     sync.Mutex
	counts []string
	hists  []float64
	tags   [][]string
	closed int
}

func (s *spyClient) Count(name string, value int64, tags []string, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, name)
	s.tags = append(s.tags, tags)
	return nil
}

func (s *spyClient) Histogram(name string, value float64, tags []string, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hists = append(s.hists, value)
	s.tags = append(s.tags, tags)
	return nil
}

func (s *spyClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func TestNewBackendRequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected error for empty Addr")
	}
}

func TestBackendForwardsToClient(t *testing.T) {
	t.Parallel()

	spy := &spyClient{}
	b := &Backend{client: spy}

	b.IncCounter(metrics.RecordsTotal, 450, metrics.Labels{"kind": "rows", "job": "ventas"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "flush"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if diff := cmp.Diff([]string{metrics.RecordsTotal}, spy.counts); diff != "" {
		t.Errorf("counts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.25}, spy.hists); diff != "" {
		t.Errorf("histograms (-want +got):\n%s", diff)
	}
	wantTags := [][]string{{"job:ventas", "kind:rows"}, {"step:flush"}}
	if diff := cmp.Diff(wantTags, spy.tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if spy.closed != 1 {
		t.Errorf("closed = %d, want 1", spy.closed)
	}
}

func TestNilClientIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %v, want nil", got)
	}
	got := labelsToTags(metrics.Labels{"status": "success", "job": "j", "step": "flush"})
	want := []string{"job:j", "status:success", "step:flush"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
}

package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docmigrate/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	m := &dto.Metric{}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	s := m.GetSummary()
	if s == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	return s.GetSampleCount(), s.GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL", jobName: "j", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "docmigrate"},
		{name: "explicit job name kept", jobName: "ventas", gatewayURL: "http://pushgateway:9091", wantJobName: "ventas"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend() = %v, %v; want nil, error", b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
			if b.stepCounter == nil || b.stepDuration == nil || b.recordCounter == nil || b.batchCounter == nil {
				t.Fatalf("collectors not initialized: %+v", b)
			}
		})
	}
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("docmigrate", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"step": "flush", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 450, metrics.Labels{"kind": "rows"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "rows"})
	b.IncCounter(metrics.BatchesTotal, 2, nil)
	b.IncCounter("unknown_metric", 10, metrics.Labels{"kind": "rows"})

	if got := readCounterValue(t, b.stepCounter.WithLabelValues("flush", "success")); got != 3 {
		t.Errorf("step counter = %v, want 3", got)
	}
	if got := readCounterValue(t, b.recordCounter.WithLabelValues("rows")); got != 451 {
		t.Errorf("record counter = %v, want 451", got)
	}
	if got := readCounterValue(t, b.batchCounter); got != 2 {
		t.Errorf("batch counter = %v, want 2", got)
	}
}

func TestIncCounterNilCollectors(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "rows"})
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("docmigrate", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	lbls := metrics.Labels{"step": "finalize", "status": "success"}
	b.ObserveHistogram(metrics.StepDurationSeconds, 1.5, lbls)
	b.ObserveHistogram("other_metric", 2.0, lbls)

	count, sum := readSummaryCountSum(t, b.stepDuration, "finalize", "success")
	if count != 1 || sum != 1.5 {
		t.Fatalf("summary count=%d sum=%v, want 1 and 1.5", count, sum)
	}
}

func TestFlushPushesToGateway(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method string
		path   string
		body   string
	}
	reqCh := make(chan pushed, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushed{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("ventas", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.BatchesTotal, 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushed
	select {
	case got = <-reqCh:
	default:
		t.Fatalf("Flush() did not send a request to the Pushgateway")
	}
	if got.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", got.method)
	}
	if !strings.Contains(got.path, "/job/ventas") {
		t.Errorf("path = %q, want job grouping key", got.path)
	}
	if len(got.body) == 0 {
		t.Errorf("empty push body")
	}
}

func BenchmarkIncCounterRecord(b *testing.B) {
	backend, err := NewBackend("docmigrate", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"kind": "rows"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RecordsTotal, 1, labels)
	}
}

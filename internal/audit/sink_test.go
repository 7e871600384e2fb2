package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"docmigrate/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/zeebo/xxh3"
)

// spyAppender records AppendAll calls.
type spyAppender struct {
	mu     sync.Mutex
	calls  [][]Row
	tables []string
	err    error
}

func (s *spyAppender) AppendAll(ctx context.Context, table string, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, rows)
	s.tables = append(s.tables, table)
	return s.err
}

func (s *spyAppender) Close() error { return nil }

func records(batch int, keys ...string) []model.FlushedRecord {
	out := make([]model.FlushedRecord, len(keys))
	for i, k := range keys {
		out[i] = model.FlushedRecord{InputKey: k, BatchID: batch, Document: &model.Document{InputKey: k, Items: []model.LineItem{}}}
	}
	return out
}

var fixedNow = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }

func TestSinkFinalAppendsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	spy := &spyAppender{}
	s, err := NewSink(spy, Options{Table: "history.audit", Destination: "VENTA_1", RunID: "r1", Now: fixedNow})
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	if err := s.Accumulate(ctx, records(0, "A", "B")); err != nil {
		t.Fatalf("Accumulate: %v", err)
	}
	if err := s.Accumulate(ctx, records(1, "C")); err != nil {
		t.Fatalf("Accumulate: %v", err)
	}
	if len(spy.calls) != 0 {
		t.Fatalf("appended before Finalize")
	}
	if err := s.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if len(spy.calls) != 1 || spy.tables[0] != "history.audit" {
		t.Fatalf("calls=%d tables=%v, want one call to history.audit", len(spy.calls), spy.tables)
	}
	var got []string
	for _, r := range spy.calls[0] {
		got = append(got, r.SkuInput)
		if r.Destination != "VENTA_1" || r.RunID != "r1" || !r.FlushedAt.Equal(fixedNow()) {
			t.Errorf("row meta = %+v", r)
		}
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, got); diff != "" {
		t.Fatalf("row order (-want +got):\n%s", diff)
	}
	if spy.calls[0][2].BatchID != 1 {
		t.Errorf("batch id of C = %d, want 1", spy.calls[0][2].BatchID)
	}
	if s.Appended() != 3 || len(s.Records()) != 3 {
		t.Errorf("Appended=%d Records=%d", s.Appended(), len(s.Records()))
	}

	if err := s.Finalize(ctx); !errors.Is(err, ErrFinalized) {
		t.Fatalf("second Finalize err = %v, want ErrFinalized", err)
	}
	if err := s.Accumulate(ctx, records(2, "D")); !errors.Is(err, ErrFinalized) {
		t.Fatalf("Accumulate after Finalize err = %v, want ErrFinalized", err)
	}
	if len(spy.calls) != 1 {
		t.Fatalf("append called %d times", len(spy.calls))
	}
}

func TestSinkZeroRecordsSkipsAppend(t *testing.T) {
	t.Parallel()

	spy := &spyAppender{}
	s, err := NewSink(spy, Options{Table: "t"})
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if err := s.Accumulate(context.Background(), nil); err != nil {
		t.Fatalf("Accumulate(nil): %v", err)
	}
	if err := s.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(spy.calls) != 0 {
		t.Fatalf("append called for an empty run")
	}
}

func TestSinkLoadFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("quota exceeded")
	spy := &spyAppender{err: cause}
	s, _ := NewSink(spy, Options{Table: "t"})
	_ = s.Accumulate(context.Background(), records(0, "A"))

	err := s.Finalize(context.Background())
	if !errors.Is(err, ErrLoad) || !errors.Is(err, cause) {
		t.Fatalf("err = %v, want ErrLoad wrapping cause", err)
	}
	if s.Appended() != 0 {
		t.Fatalf("Appended = %d after failure", s.Appended())
	}
	if err := s.Finalize(context.Background()); !errors.Is(err, ErrFinalized) {
		t.Fatalf("retry Finalize err = %v, want ErrFinalized", err)
	}
}

func TestSinkPerBatchMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	spy := &spyAppender{}
	s, err := NewSink(spy, Options{Table: "t", Mode: ModePerBatch})
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	_ = s.Accumulate(ctx, records(0, "A", "B"))
	_ = s.Accumulate(ctx, records(1, "C"))
	if err := s.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(spy.calls) != 2 || len(spy.calls[0]) != 2 || len(spy.calls[1]) != 1 {
		t.Fatalf("calls = %v", spy.calls)
	}
	if s.Appended() != 3 || len(s.Records()) != 0 {
		t.Fatalf("Appended=%d Records=%d", s.Appended(), len(s.Records()))
	}
}

func TestNewSinkValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewSink(nil, Options{Table: "t"}); err == nil {
		t.Error("expected error for nil appender")
	}
	if _, err := NewSink(&spyAppender{}, Options{}); err == nil {
		t.Error("expected error for empty table")
	}
	if _, err := NewSink(&spyAppender{}, Options{Table: "t", Mode: "hourly"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestFlattenChecksum(t *testing.T) {
	t.Parallel()

	rows, err := Flatten(records(3, "K"), Meta{Destination: "D"})
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	r := rows[0]
	if string(r.DataJSON) != `{"processDate":"","loadDate":"","codProyecto":"","nombreProyecto":"","skuInput":"K","items":[]}` {
		t.Fatalf("DataJSON = %s", r.DataJSON)
	}
	if want := xxh3.Hash(r.DataJSON); r.Checksum != fmt.Sprintf("%016x", want) {
		t.Fatalf("checksum = %s, want %016x", r.Checksum, want)
	}
	if r.BatchID != 3 || r.SkuInput != "K" || r.Destination != "D" {
		t.Fatalf("row = %+v", r)
	}
}


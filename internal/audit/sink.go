package audit

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"docmigrate/internal/model"
)

// Mode selects when the Sink appends.
type Mode string

const (
	// ModeFinal appends every record of the run in one job at Finalize.
	ModeFinal Mode = "final"
	// ModePerBatch appends each batch's records as they are accumulated.
	ModePerBatch Mode = "per_batch"
)

// ParseMode validates a mode name. Empty means ModeFinal.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeFinal, nil
	case ModeFinal, ModePerBatch:
		return m, nil
	}
	return "", fmt.Errorf("audit: unknown mode %q (want %s or %s)", s, ModeFinal, ModePerBatch)
}

// Options configures a Sink.
type Options struct {
	// Table is the audit table, "dataset.table" or "table".
	Table string
	Mode  Mode

	// Destination and RunID are copied onto every row.
	Destination string
	RunID       string

	// Now stamps rows; defaults to time.Now.
	Now func() time.Time
}

// Sink collects flushed records and appends them to the analytical store.
// It is not safe for concurrent use.
type Sink struct {
	app  Appender
	opts Options

	records   []model.FlushedRecord
	appended  int
	finalized bool
}

// NewSink returns a Sink appending through app.
func NewSink(app Appender, opts Options) (*Sink, error) {
	if app == nil {
		return nil, fmt.Errorf("audit: appender must not be nil")
	}
	if strings.TrimSpace(opts.Table) == "" {
		return nil, fmt.Errorf("audit: table must not be empty")
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	opts.Mode = mode
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sink{app: app, opts: opts}, nil
}

// Accumulate records one flushed batch. In per-batch mode the batch is
// appended immediately.
func (s *Sink) Accumulate(ctx context.Context, recs []model.FlushedRecord) error {
	if s.finalized {
		return ErrFinalized
	}
	if len(recs) == 0 {
		return nil
	}
	if s.opts.Mode == ModePerBatch {
		return s.append(ctx, recs)
	}
	s.records = append(s.records, recs...)
	return nil
}

// Finalize performs the terminal append. It succeeds without appending when
// nothing was accumulated, and returns ErrFinalized on a second call.
func (s *Sink) Finalize(ctx context.Context) error {
	if s.finalized {
		return ErrFinalized
	}
	s.finalized = true

	if s.opts.Mode == ModePerBatch {
		log.Printf("audit: per-batch mode appended %d rows to %s", s.appended, s.opts.Table)
		return nil
	}
	if len(s.records) == 0 {
		log.Printf("audit: no records flushed, skipping load into %s", s.opts.Table)
		return nil
	}
	return s.append(ctx, s.records)
}

// Records returns the records held for the final append.
func (s *Sink) Records() []model.FlushedRecord {
	out := make([]model.FlushedRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Appended is the number of rows appended so far.
func (s *Sink) Appended() int { return s.appended }

func (s *Sink) append(ctx context.Context, recs []model.FlushedRecord) error {
	rows, err := Flatten(recs, Meta{
		Destination: s.opts.Destination,
		RunID:       s.opts.RunID,
		FlushedAt:   s.opts.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	start := time.Now()
	if err := s.app.AppendAll(ctx, s.opts.Table, rows); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoad, s.opts.Table, err)
	}
	s.appended += len(rows)
	log.Printf("audit: appended %d rows to %s in %s", len(rows), s.opts.Table, time.Since(start).Truncate(time.Millisecond))
	return nil
}

// Package pipeline drives a migration run: rows are folded into the open
// batch, the batch is flushed to the document store every ChunkSize rows, and
// every flushed document is handed to the audit sink.
//
// Flush sequence for one batch:
//
//	Writer.Write(docs, destination, batchID)
//	Accumulator.Accumulate(records of this batch, in key insertion order)
//	reset the batch
//	batchID++          (not after the final flush in Close)
//
// Rows are counted from 1 across the whole stream, so flushes happen at rows
// ChunkSize, 2*ChunkSize, ... plus one final flush for the remainder.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"docmigrate/internal/aggregate"
	"docmigrate/internal/metrics"
	"docmigrate/internal/model"
)

// ErrKeyReappeared is returned in strict mode when a key that was already
// flushed shows up again in a later batch.
var ErrKeyReappeared = errors.New("input key reappeared after its batch was flushed")

// ErrClosed is returned when rows are added after Close.
var ErrClosed = errors.New("pipeline: controller closed")

// Writer commits one batch to the document store.
type Writer interface {
	Write(ctx context.Context, docs []model.KeyedDocument, dest string, batchID int) error
}

// Accumulator receives the records of every committed batch.
type Accumulator interface {
	Accumulate(ctx context.Context, recs []model.FlushedRecord) error
}

// Finalizer is an Accumulator with a terminal step run once at end of stream.
type Finalizer interface {
	Accumulator
	Finalize(ctx context.Context) error
}

// Options configures a Controller.
type Options struct {
	// ChunkSize is the number of rows between flushes. Must be > 0.
	ChunkSize int

	// Destination is the resolved destination name.
	Destination string

	// StrictKeys turns a reappearing key into ErrKeyReappeared instead of a
	// warning.
	StrictKeys bool

	// Job labels logs and metrics.
	Job string
}

// Stats summarizes a run.
type Stats struct {
	Rows       int64
	Documents  int64
	Batches    int
	Reappeared int
}

// Controller owns the open batch and the batch counter.
type Controller struct {
	w    Writer
	sink Accumulator
	opts Options

	batch   *aggregate.Batch
	batchID int
	rows    int64
	closed  bool

	// flushed maps each flushed key to the batch that carried it.
	flushed map[string]int
	stats   Stats

	start     time.Time
	lastFlush time.Time
	lastRows  int64
}

// NewController returns a Controller writing through w and reporting to sink.
func NewController(w Writer, sink Accumulator, opts Options) (*Controller, error) {
	if w == nil || sink == nil {
		return nil, fmt.Errorf("pipeline: writer and sink must not be nil")
	}
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("pipeline: chunk size must be > 0, got %d", opts.ChunkSize)
	}
	if opts.Destination == "" {
		return nil, fmt.Errorf("pipeline: destination must not be empty")
	}
	now := time.Now()
	return &Controller{
		w:         w,
		sink:      sink,
		opts:      opts,
		batch:     aggregate.NewBatch(),
		flushed:   make(map[string]int),
		start:     now,
		lastFlush: now,
	}, nil
}

// Add ingests the next row of the stream and flushes when the row count
// reaches a multiple of the chunk size.
func (c *Controller) Add(ctx context.Context, r model.Row) error {
	if c.closed {
		return ErrClosed
	}
	if !c.batch.Has(r.InputKey) {
		if prev, ok := c.flushed[r.InputKey]; ok {
			if c.opts.StrictKeys {
				return fmt.Errorf("%w: key=%s flushed_in_batch=%d row=%d", ErrKeyReappeared, r.InputKey, prev, c.rows+1)
			}
			c.stats.Reappeared++
			metrics.RecordRow(c.opts.Job, "reappeared", 1)
			log.Printf("pipeline: WARN key=%s reappeared at row=%d after batch #%d; it will be written again as a new document",
				r.InputKey, c.rows+1, prev)
		}
	}

	c.rows++
	c.stats.Rows = c.rows
	c.batch.Ingest(r)

	_, err := c.Observe(ctx, c.rows)
	return err
}

// Observe flushes the open batch when rowIndex (1-based) is a multiple of
// the chunk size, and reports whether it did.
func (c *Controller) Observe(ctx context.Context, rowIndex int64) (bool, error) {
	if rowIndex <= 0 || rowIndex%int64(c.opts.ChunkSize) != 0 {
		return false, nil
	}
	n, err := c.flush(ctx)
	if err != nil {
		return true, err
	}
	if n > 0 {
		c.batchID++
	}
	return true, nil
}

// Close flushes whatever remains in the open batch. The batch counter is not
// advanced afterwards. Calling Close again is a no-op.
func (c *Controller) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	n, err := c.flush(ctx)
	if err != nil {
		return err
	}
	log.Printf("pipeline: input exhausted, final_flush=%d total_rows=%d total_documents=%d batches=%d",
		n, c.stats.Rows, c.stats.Documents, c.stats.Batches)
	return nil
}

// BatchID is the id the next flush will use.
func (c *Controller) BatchID() int { return c.batchID }

// Pending is the number of documents in the open batch.
func (c *Controller) Pending() int { return c.batch.Len() }

// Stats returns the running totals.
func (c *Controller) Stats() Stats { return c.stats }

func (c *Controller) flush(ctx context.Context) (int, error) {
	docs := c.batch.Documents()
	if len(docs) == 0 {
		return 0, nil
	}

	t0 := time.Now()
	err := c.w.Write(ctx, docs, c.opts.Destination, c.batchID)
	metrics.RecordStep(c.opts.Job, "flush", err, time.Since(t0))
	if err != nil {
		log.Printf("pipeline: flush failed batch=%d destination=%s documents=%d err=%v",
			c.batchID, c.opts.Destination, len(docs), err)
		return 0, err
	}

	recs := make([]model.FlushedRecord, len(docs))
	for i, d := range docs {
		recs[i] = model.FlushedRecord{InputKey: d.Key, Document: d.Document, BatchID: c.batchID}
	}
	if err := c.sink.Accumulate(ctx, recs); err != nil {
		return 0, fmt.Errorf("pipeline: accumulate batch %d: %w", c.batchID, err)
	}
	for _, d := range docs {
		c.flushed[d.Key] = c.batchID
	}
	c.batch.Reset()

	c.stats.Batches++
	c.stats.Documents += int64(len(docs))
	metrics.RecordBatches(c.opts.Job, 1)
	metrics.RecordRow(c.opts.Job, "documents", int64(len(docs)))
	metrics.RecordRow(c.opts.Job, "rows", c.rows-c.lastRows)

	now := time.Now()
	sinceLast := now.Sub(c.lastFlush)
	rps := float64(0)
	if sinceLast > 0 {
		rps = float64(c.rows-c.lastRows) / sinceLast.Seconds()
	}
	log.Printf(
		"batch #%d: rps=%.0f documents=%d total_documents=%d total_rows=%d destination=%s elapsed=%s since_last=%s",
		c.batchID,
		rps,
		len(docs),
		c.stats.Documents,
		c.rows,
		c.opts.Destination,
		now.Sub(c.start).Truncate(time.Millisecond),
		sinceLast.Truncate(time.Millisecond),
	)
	c.lastFlush = now
	c.lastRows = c.rows
	return len(docs), nil
}

package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"docmigrate/internal/metrics"
	"docmigrate/internal/source"
)

// Run drains it through c, performs the final flush and finalizes sink. A
// failed flush returns before the sink is finalized.
func Run(ctx context.Context, it source.RowIterator, c *Controller, sink Finalizer) (Stats, error) {
	for {
		if err := ctx.Err(); err != nil {
			return c.Stats(), err
		}
		row, err := it.Next(ctx)
		if errors.Is(err, source.Done) {
			break
		}
		if err != nil {
			return c.Stats(), err
		}
		if err := c.Add(ctx, row); err != nil {
			return c.Stats(), err
		}
	}

	if err := c.Close(ctx); err != nil {
		return c.Stats(), err
	}

	t0 := time.Now()
	err := sink.Finalize(ctx)
	metrics.RecordStep(c.opts.Job, "finalize", err, time.Since(t0))
	if err != nil {
		return c.Stats(), err
	}
	if a, ok := sink.(interface{ Appended() int }); ok {
		metrics.RecordRow(c.opts.Job, "audited", int64(a.Appended()))
	}

	st := c.Stats()
	log.Printf("pipeline: done job=%s destination=%s rows=%d documents=%d batches=%d reappeared=%d elapsed=%s",
		c.opts.Job, c.opts.Destination, st.Rows, st.Documents, st.Batches, st.Reappeared,
		time.Since(c.start).Truncate(time.Millisecond))
	return st, nil
}

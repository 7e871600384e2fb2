package docstore

import (
	"context"
	"errors"

	"docmigrate/internal/model"
)

// Writer commits flushed batches to a Store.
type Writer struct {
	store Store
}

// NewWriter returns a Writer over s.
func NewWriter(s Store) *Writer { return &Writer{store: s} }

// Exists delegates to the store so a Writer can serve as a naming.Prober.
func (w *Writer) Exists(ctx context.Context, dest string) (bool, error) {
	return w.store.Exists(ctx, dest)
}

// Write commits docs to dest in one atomic call. An empty batch is not
// written. Failures are returned as *WriteError.
func (w *Writer) Write(ctx context.Context, docs []model.KeyedDocument, dest string, batchID int) error {
	if w == nil || w.store == nil {
		return &WriteError{Destination: dest, BatchID: batchID, Err: errors.New("no store configured")}
	}
	if len(docs) == 0 {
		return nil
	}
	if err := w.store.Commit(ctx, dest, docs); err != nil {
		return &WriteError{Destination: dest, BatchID: batchID, Err: err}
	}
	return nil
}

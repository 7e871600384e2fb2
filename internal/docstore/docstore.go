// Package docstore commits batches of documents to a document store.
//
// A destination is a named container of documents (a Firestore collection, a
// Mongo collection, a SQL table). A Store can tell whether a destination
// already holds data, which the naming package uses to pick a fresh one, and
// commit a batch of documents to it atomically.
//
// Backends register themselves by kind; importing
// docmigrate/internal/docstore/all enables every built-in backend.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"docmigrate/internal/model"
)

// ErrWrite matches every batch write failure (see WriteError).
var ErrWrite = errors.New("document batch write failed")

// WriteError reports a failed batch commit. Nothing in the batch was
// persisted and the write is not retried.
type WriteError struct {
	Destination string
	BatchID     int
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write batch %d to %s: %v", e.BatchID, e.Destination, e.Err)
}

// Is makes errors.Is(err, ErrWrite) true for any *WriteError.
func (e *WriteError) Is(target error) bool { return target == ErrWrite }

func (e *WriteError) Unwrap() error { return e.Err }

// Store is a document store backend.
type Store interface {
	// Exists reports whether dest holds at least one document.
	Exists(ctx context.Context, dest string) (bool, error)

	// Commit writes docs to dest as a single atomic unit: either every
	// document is stored or none is. A document whose key already exists in
	// dest is replaced.
	Commit(ctx context.Context, dest string, docs []model.KeyedDocument) error

	Close() error
}

// Config is the backend-agnostic document store configuration.
type Config struct {
	Kind string

	// DSN is the connection string (SQL backends) or URI (mongo).
	DSN string

	// Project and CredentialsFile are used by Firestore. An empty
	// CredentialsFile means application default credentials.
	Project         string
	CredentialsFile string

	// Database selects a named Firestore database or the Mongo database.
	Database string
}

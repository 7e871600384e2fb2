// Package source reads flat rows from the analytical store.
//
// A Source runs one query and hands back a RowIterator that fetches the
// result lazily, one server page at a time. Backends register themselves by
// kind (see Register) so callers only depend on this package; importing
// docmigrate/internal/source/all enables every built-in backend.
package source

import (
	"context"
	"errors"

	"docmigrate/internal/model"
)

// Done is returned by RowIterator.Next when the result is exhausted.
var Done = errors.New("source: no more rows")

// ErrRead wraps any failure while fetching or decoding result rows.
var ErrRead = errors.New("source read failed")

// RowIterator yields rows in server order. It is not safe for concurrent use.
type RowIterator interface {
	// Next returns the next row, or Done once the result is exhausted.
	Next(ctx context.Context) (model.Row, error)
	Close() error
}

// Source runs queries against the analytical store.
type Source interface {
	// Query starts query and returns an iterator that fetches at most
	// pageSize rows per round trip.
	Query(ctx context.Context, query string, pageSize int) (RowIterator, error)
	Close() error
}

// Config is the backend-agnostic source configuration.
type Config struct {
	Kind string

	// DSN is the connection string for SQL backends.
	DSN string

	// Project and CredentialsFile are used by the BigQuery backend. An empty
	// CredentialsFile means application default credentials.
	Project         string
	CredentialsFile string

	// Mapping maps result columns to Row fields. Zero fields take the
	// defaults of DefaultMapping.
	Mapping Mapping

	// NormalizeUnicode applies NFC normalization and trims surrounding
	// whitespace on every mapped value.
	NormalizeUnicode bool
}

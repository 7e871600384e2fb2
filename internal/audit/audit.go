// Package audit reconciles a run against the analytical store: every record
// flushed to the document store is appended, flattened, to an audit table.
//
// By default the Sink collects records in memory and performs exactly one
// bulk append at the end of the run, so the audit table either receives the
// whole run or nothing. The per-batch mode appends after every flush instead,
// which bounds memory but gives up that single-job guarantee.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"docmigrate/internal/model"

	"github.com/zeebo/xxh3"
)

// ErrLoad wraps any failure of the append into the analytical store.
var ErrLoad = errors.New("audit load failed")

// ErrFinalized is returned when the Sink is used after Finalize.
var ErrFinalized = errors.New("audit sink already finalized")

// Row is one flattened audit record.
type Row struct {
	SkuInput    string          `json:"sku_input"`
	Data        *model.Document `json:"data"`
	BatchID     int             `json:"batch_id"`
	Checksum    string          `json:"checksum"`
	Destination string          `json:"destination"`
	RunID       string          `json:"run_id"`
	FlushedAt   time.Time       `json:"flushed_at"`

	// DataJSON is Data encoded as JSON, for SQL backends.
	DataJSON []byte `json:"-"`
}

// Meta is attached to every row of a run.
type Meta struct {
	Destination string
	RunID       string
	FlushedAt   time.Time
}

// Flatten converts flushed records to audit rows, in order. The checksum is
// the xxh3-64 hash of the document's JSON encoding, in hex.
func Flatten(recs []model.FlushedRecord, meta Meta) ([]Row, error) {
	out := make([]Row, 0, len(recs))
	for _, r := range recs {
		data, err := json.Marshal(r.Document)
		if err != nil {
			return nil, fmt.Errorf("audit: encode %s: %w", r.InputKey, err)
		}
		out = append(out, Row{
			SkuInput:    r.InputKey,
			Data:        r.Document,
			BatchID:     r.BatchID,
			Checksum:    fmt.Sprintf("%016x", xxh3.Hash(data)),
			Destination: meta.Destination,
			RunID:       meta.RunID,
			FlushedAt:   meta.FlushedAt,
			DataJSON:    data,
		})
	}
	return out, nil
}

// Appender bulk-appends rows to a table in the analytical store.
type Appender interface {
	// AppendAll appends rows to table as one job. Nothing is appended when
	// it fails.
	AppendAll(ctx context.Context, table string, rows []Row) error
	Close() error
}

// Config is the backend-agnostic appender configuration.
type Config struct {
	Kind string
	DSN  string

	// Project, Dataset and CredentialsFile are used by BigQuery. Dataset is
	// the default when the table name carries none.
	Project         string
	Dataset         string
	CredentialsFile string

	// AutoCreateTable creates the audit table when missing.
	AutoCreateTable bool
}

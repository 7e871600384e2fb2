// Package bigquery appends audit rows to BigQuery with a load job. Rows are
// sent as newline-delimited JSON and the schema is auto-detected, so nested
// documents land as repeated records.
package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"docmigrate/internal/audit"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/option"
)

// newClient is a test hook.
var newClient = func(ctx context.Context, project string, opts ...option.ClientOption) (*bq.Client, error) {
	return bq.NewClient(ctx, project, opts...)
}

func init() {
	audit.Register("bigquery", func(ctx context.Context, cfg audit.Config) (audit.Appender, error) {
		if strings.TrimSpace(cfg.Project) == "" {
			return nil, fmt.Errorf("bigquery audit: project is required")
		}
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		c, err := newClient(ctx, cfg.Project, opts...)
		if err != nil {
			return nil, fmt.Errorf("bigquery audit: client: %w", err)
		}
		return &Appender{client: c, dataset: cfg.Dataset, create: cfg.AutoCreateTable}, nil
	})
}

// Appender runs one load job per AppendAll call.
type Appender struct {
	client  *bq.Client
	dataset string
	create  bool
}

var _ audit.Appender = (*Appender)(nil)

// AppendAll implements audit.Appender.
func (a *Appender) AppendAll(ctx context.Context, table string, rows []audit.Row) error {
	ds, tbl, err := SplitTable(table, a.dataset)
	if err != nil {
		return err
	}
	body, err := EncodeNDJSON(rows)
	if err != nil {
		return err
	}

	src := bq.NewReaderSource(bytes.NewReader(body))
	src.SourceFormat = bq.JSON
	src.AutoDetect = true

	loader := a.client.Dataset(ds).Table(tbl).LoaderFrom(src)
	loader.WriteDisposition = bq.WriteAppend
	loader.CreateDisposition = bq.CreateNever
	if a.create {
		loader.CreateDisposition = bq.CreateIfNeeded
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("bigquery audit: start load into %s.%s: %w", ds, tbl, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("bigquery audit: wait for job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("bigquery audit: job %s: %w", job.ID(), err)
	}
	return nil
}

// Close implements audit.Appender.
func (a *Appender) Close() error { return a.client.Close() }

// SplitTable resolves "dataset.table" or "table" against a default dataset.
func SplitTable(table, defaultDataset string) (dataset, name string, err error) {
	parts := strings.Split(strings.TrimSpace(table), ".")
	switch {
	case len(parts) == 1 && parts[0] != "" && defaultDataset != "":
		return defaultDataset, parts[0], nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("bigquery audit: table %q needs the form dataset.table (or a default dataset)", table)
}

// EncodeNDJSON renders rows as newline-delimited JSON.
func EncodeNDJSON(rows []audit.Row) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return nil, fmt.Errorf("bigquery audit: encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Package bigquery reads source rows from BigQuery. Results are paged by the
// client library; the page size is set on the row iterator so each round trip
// fetches at most one chunk.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docmigrate/internal/model"
	"docmigrate/internal/source"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// newClient is a test hook.
var newClient = func(ctx context.Context, project string, opts ...option.ClientOption) (*bq.Client, error) {
	return bq.NewClient(ctx, project, opts...)
}

func init() {
	source.Register("bigquery", func(ctx context.Context, cfg source.Config) (source.Source, error) {
		if strings.TrimSpace(cfg.Project) == "" {
			return nil, fmt.Errorf("bigquery source: project is required")
		}
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		c, err := newClient(ctx, cfg.Project, opts...)
		if err != nil {
			return nil, fmt.Errorf("bigquery source: client: %w", err)
		}
		return &Source{client: c, mapping: cfg.Mapping, normalize: cfg.NormalizeUnicode}, nil
	})
}

// Source runs standard-SQL queries.
type Source struct {
	client    *bq.Client
	mapping   source.Mapping
	normalize bool
}

// Query implements source.Source.
func (s *Source) Query(ctx context.Context, query string, pageSize int) (source.RowIterator, error) {
	it, err := s.client.Query(query).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: bigquery query: %v", source.ErrRead, err)
	}
	if pageSize > 0 {
		it.PageInfo().MaxSize = pageSize
	}
	return &rowIterator{it: it, mapping: s.mapping, normalize: s.normalize}, nil
}

// Close implements source.Source.
func (s *Source) Close() error { return s.client.Close() }

// valueIterator is the part of *bq.RowIterator used here.
type valueIterator interface {
	Next(dst interface{}) error
}

type rowIterator struct {
	it        valueIterator
	mapping   source.Mapping
	normalize bool
	n         int
}

func (r *rowIterator) Next(ctx context.Context) (model.Row, error) {
	if err := ctx.Err(); err != nil {
		return model.Row{}, err
	}
	var vals map[string]bq.Value
	switch err := r.it.Next(&vals); {
	case errors.Is(err, iterator.Done):
		return model.Row{}, source.Done
	case err != nil:
		return model.Row{}, fmt.Errorf("%w: bigquery row %d: %v", source.ErrRead, r.n+1, err)
	}
	r.n++
	row, err := r.mapping.Row(func(col string) (any, bool) {
		v, ok := vals[col]
		return v, ok
	}, r.normalize)
	if err != nil {
		return model.Row{}, fmt.Errorf("%w: bigquery row %d: %v", source.ErrRead, r.n, err)
	}
	return row, nil
}

// Close is a no-op; the BigQuery iterator holds no resources between pages.
func (r *rowIterator) Close() error { return nil }

// Package postgres reads source rows from Postgres through a server-side
// cursor, fetching one page per round trip.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"docmigrate/internal/model"
	"docmigrate/internal/source"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cursorName = "docmigrate_src"

// newPool is a test hook.
var newPool = pgxpool.New

func init() {
	source.Register("postgres", func(ctx context.Context, cfg source.Config) (source.Source, error) {
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("postgres source: DSN must not be empty")
		}
		pool, err := newPool(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres source: pgxpool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres source: ping: %w", err)
		}
		return &Source{pool: pool, mapping: cfg.Mapping, normalize: cfg.NormalizeUnicode}, nil
	})
}

// Source runs queries on a pgx pool.
type Source struct {
	pool      *pgxpool.Pool
	mapping   source.Mapping
	normalize bool
}

// Query declares a cursor for query inside a read-only transaction. The
// transaction stays open until the iterator is closed.
func (s *Source) Query(ctx context.Context, query string, pageSize int) (source.RowIterator, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("postgres source: page size must be > 0")
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("%w: postgres begin: %v", source.ErrRead, err)
	}
	decl := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", cursorName, strings.TrimRight(strings.TrimSpace(query), ";"))
	if _, err := tx.Exec(ctx, decl); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("%w: postgres declare cursor: %v", source.ErrRead, err)
	}
	return &rowIterator{
		tx:        tx,
		fetch:     fmt.Sprintf("FETCH FORWARD %d FROM %s", pageSize, cursorName),
		mapping:   s.mapping,
		normalize: s.normalize,
	}, nil
}

// Close implements source.Source.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

type rowIterator struct {
	tx        pgx.Tx
	fetch     string
	mapping   source.Mapping
	normalize bool

	page []map[string]any
	pos  int
	done bool
	n    int
}

func (r *rowIterator) Next(ctx context.Context) (model.Row, error) {
	if r.pos >= len(r.page) {
		if r.done {
			return model.Row{}, source.Done
		}
		if err := r.nextPage(ctx); err != nil {
			return model.Row{}, err
		}
		if len(r.page) == 0 {
			r.done = true
			return model.Row{}, source.Done
		}
	}
	vals := r.page[r.pos]
	r.pos++
	r.n++
	row, err := r.mapping.Row(func(col string) (any, bool) {
		v, ok := vals[col]
		return v, ok
	}, r.normalize)
	if err != nil {
		return model.Row{}, fmt.Errorf("%w: postgres row %d: %v", source.ErrRead, r.n, err)
	}
	return row, nil
}

func (r *rowIterator) nextPage(ctx context.Context) error {
	rows, err := r.tx.Query(ctx, r.fetch)
	if err != nil {
		return fmt.Errorf("%w: postgres fetch: %v", source.ErrRead, err)
	}
	page, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return fmt.Errorf("%w: postgres fetch: %v", source.ErrRead, err)
	}
	r.page, r.pos = page, 0
	return nil
}

// Close ends the read-only transaction, which also drops the cursor.
func (r *rowIterator) Close() error {
	if r.tx == nil {
		return nil
	}
	err := r.tx.Rollback(context.Background())
	r.tx = nil
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("postgres source: close cursor: %w", err)
	}
	return nil
}

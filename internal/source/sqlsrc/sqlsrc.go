// Package sqlsrc reads source rows through database/sql. It serves the
// sqlite, mssql and mysql kinds; the driver streams rows so no explicit
// paging is needed.
package sqlsrc

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"docmigrate/internal/model"
	"docmigrate/internal/source"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// drivers maps a source kind to its database/sql driver name.
var drivers = map[string]string{
	"sqlite": "sqlite",
	"mssql":  "sqlserver",
	"mysql":  "mysql",
}

func init() {
	for kind, driver := range drivers {
		driver := driver
		source.Register(kind, func(ctx context.Context, cfg source.Config) (source.Source, error) {
			return Open(ctx, driver, cfg)
		})
	}
}

// Source runs queries on a *sql.DB.
type Source struct {
	db        *sql.DB
	mapping   source.Mapping
	normalize bool
}

// Open connects with driver and pings the database.
func Open(ctx context.Context, driver string, cfg source.Config) (*Source, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s source: DSN must not be empty", cfg.Kind)
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s source: open: %w", cfg.Kind, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s source: ping: %w", cfg.Kind, err)
	}
	return &Source{db: db, mapping: cfg.Mapping.WithDefaults(), normalize: cfg.NormalizeUnicode}, nil
}

// Query implements source.Source. pageSize is ignored.
func (s *Source) Query(ctx context.Context, query string, pageSize int) (source.RowIterator, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", source.ErrRead, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: columns: %v", source.ErrRead, err)
	}
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	return &rowIterator{rows: rows, index: index, mapping: s.mapping, normalize: s.normalize}, nil
}

// Close implements source.Source.
func (s *Source) Close() error { return s.db.Close() }

type rowIterator struct {
	rows      *sql.Rows
	index     map[string]int
	mapping   source.Mapping
	normalize bool
	n         int
}

func (r *rowIterator) Next(ctx context.Context) (model.Row, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return model.Row{}, fmt.Errorf("%w: row %d: %v", source.ErrRead, r.n+1, err)
		}
		return model.Row{}, source.Done
	}
	r.n++

	vals := make([]any, len(r.index))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return model.Row{}, fmt.Errorf("%w: scan row %d: %v", source.ErrRead, r.n, err)
	}

	row, err := r.mapping.Row(func(col string) (any, bool) {
		i, ok := r.index[col]
		if !ok {
			return nil, false
		}
		return vals[i], true
	}, r.normalize)
	if err != nil {
		return model.Row{}, fmt.Errorf("%w: row %d: %v", source.ErrRead, r.n, err)
	}
	return row, nil
}

func (r *rowIterator) Close() error { return r.rows.Close() }

// Package postgres appends audit rows to Postgres with COPY.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"docmigrate/internal/audit"
	"docmigrate/internal/ddl"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// newPool is a test hook.
var newPool = pgxpool.New

func init() {
	audit.Register("postgres", func(ctx context.Context, cfg audit.Config) (audit.Appender, error) {
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("postgres audit: DSN must not be empty")
		}
		pool, err := newPool(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres audit: pgxpool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres audit: ping: %w", err)
		}
		return &Appender{pool: pool, create: cfg.AutoCreateTable}, nil
	})
}

// Appender copies rows in one transaction, creating the table first when
// asked to.
type Appender struct {
	pool   *pgxpool.Pool
	create bool
}

var _ audit.Appender = (*Appender)(nil)

// AppendAll implements audit.Appender.
func (a *Appender) AppendAll(ctx context.Context, table string, rows []audit.Row) error {
	td := ddl.AuditTable(table)
	return pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		if a.create {
			stmt, err := ddl.BuildCreateTableSQL(ddl.Postgres, td)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("postgres audit: create %s: %w", table, err)
			}
		}
		n, err := tx.CopyFrom(ctx, Identifier(table), td.ColumnNames(), pgx.CopyFromRows(Values(rows)))
		if err != nil {
			return fmt.Errorf("postgres audit: copy into %s: %w", table, err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("postgres audit: copied %d of %d rows", n, len(rows))
		}
		return nil
	})
}

// Close implements audit.Appender.
func (a *Appender) Close() error {
	a.pool.Close()
	return nil
}

// Identifier splits a dotted table name for CopyFrom.
func Identifier(table string) pgx.Identifier {
	var id pgx.Identifier
	for _, p := range strings.Split(table, ".") {
		if p = strings.TrimSpace(p); p != "" {
			id = append(id, p)
		}
	}
	return id
}

// Values lays rows out in ddl.AuditTable column order.
func Values(rows []audit.Row) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{r.SkuInput, string(r.DataJSON), r.BatchID, r.Checksum, r.Destination, r.RunID, r.FlushedAt}
	}
	return out
}

// Package sqlsink appends audit rows through database/sql for the sqlite,
// mssql and mysql kinds. Rows are inserted with a prepared statement inside
// one transaction.
package sqlsink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"docmigrate/internal/audit"
	"docmigrate/internal/ddl"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

var drivers = map[ddl.Dialect]string{
	ddl.SQLite: "sqlite",
	ddl.MSSQL:  "sqlserver",
	ddl.MySQL:  "mysql",
}

func init() {
	for d := range drivers {
		d := d
		audit.Register(string(d), func(ctx context.Context, cfg audit.Config) (audit.Appender, error) {
			return Open(ctx, d, cfg.DSN, cfg.AutoCreateTable)
		})
	}
}

// Appender is a database/sql audit appender.
type Appender struct {
	db      *sql.DB
	dialect ddl.Dialect
	create  bool
}

var _ audit.Appender = (*Appender)(nil)

// Open connects to dsn using the driver for dialect d.
func Open(ctx context.Context, d ddl.Dialect, dsn string, create bool) (*Appender, error) {
	driver, ok := drivers[d]
	if !ok {
		return nil, fmt.Errorf("sqlsink: unsupported dialect %q", d)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s audit: DSN must not be empty", d)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s audit: open: %w", d, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s audit: ping: %w", d, err)
	}
	return &Appender{db: db, dialect: d, create: create}, nil
}

// AppendAll implements audit.Appender.
func (a *Appender) AppendAll(ctx context.Context, table string, rows []audit.Row) error {
	td := ddl.AuditTable(table)

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s audit: begin tx: %w", a.dialect, err)
	}
	defer tx.Rollback()

	if a.create {
		stmt, err := ddl.BuildCreateTableSQL(a.dialect, td)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s audit: create %s: %w", a.dialect, table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, ddl.BuildInsertSQL(a.dialect, td))
	if err != nil {
		return fmt.Errorf("%s audit: prepare insert: %w", a.dialect, err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.SkuInput, string(r.DataJSON), r.BatchID, r.Checksum, r.Destination, r.RunID, r.FlushedAt,
		); err != nil {
			return fmt.Errorf("%s audit: insert row %d (%s): %w", a.dialect, i, r.SkuInput, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s audit: commit: %w", a.dialect, err)
	}
	return nil
}

// Close implements audit.Appender.
func (a *Appender) Close() error { return a.db.Close() }

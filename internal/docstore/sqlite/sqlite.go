// Package sqlite stores documents in a SQLite database file. Each destination
// is a table of (doc_id, data) with the document as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docmigrate/internal/ddl"
	"docmigrate/internal/docstore"
	"docmigrate/internal/model"

	_ "modernc.org/sqlite"
)

func init() {
	docstore.Register("sqlite", func(ctx context.Context, cfg docstore.Config) (docstore.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Store is a SQLite-backed docstore.Store.
type Store struct {
	db *sql.DB
}

var _ docstore.Store = (*Store)(nil)

// Open opens the database at dsn and pings it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite docstore: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite docstore: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite docstore: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// Exists reports whether the destination table exists and has a row.
func (s *Store) Exists(ctx context.Context, dest string) (bool, error) {
	if err := checkName(dest); err != nil {
		return false, err
	}
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", dest,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite docstore: probe %s: %w", dest, err)
	}
	var nonEmpty bool
	q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s)", ddl.SQLite.QuoteIdent(dest))
	if err := s.db.QueryRowContext(ctx, q).Scan(&nonEmpty); err != nil {
		return false, fmt.Errorf("sqlite docstore: probe %s: %w", dest, err)
	}
	return nonEmpty, nil
}

// Commit ensures the table and upserts every document in one transaction.
func (s *Store) Commit(ctx context.Context, dest string, docs []model.KeyedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if err := checkName(dest); err != nil {
		return err
	}
	create, err := ddl.BuildCreateTableSQL(ddl.SQLite, ddl.DocumentTable(dest))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite docstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("sqlite docstore: create %s: %w", dest, err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertSQL(dest))
	if err != nil {
		return fmt.Errorf("sqlite docstore: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		data, err := json.Marshal(d.Document)
		if err != nil {
			return fmt.Errorf("sqlite docstore: encode %s: %w", d.Key, err)
		}
		if _, err := stmt.ExecContext(ctx, d.Key, string(data)); err != nil {
			return fmt.Errorf("sqlite docstore: upsert %s: %w", d.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite docstore: commit: %w", err)
	}
	return nil
}

// Load returns every document in dest ordered by key.
func (s *Store) Load(ctx context.Context, dest string) ([]model.KeyedDocument, error) {
	q := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		ddl.SQLite.QuoteIdent(ddl.ColDocID), ddl.SQLite.QuoteIdent(ddl.ColDocument),
		ddl.SQLite.QuoteIdent(dest), ddl.SQLite.QuoteIdent(ddl.ColDocID))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite docstore: load %s: %w", dest, err)
	}
	defer rows.Close()

	var out []model.KeyedDocument
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("sqlite docstore: scan: %w", err)
		}
		doc := &model.Document{}
		if err := json.Unmarshal([]byte(data), doc); err != nil {
			return nil, fmt.Errorf("sqlite docstore: decode %s: %w", key, err)
		}
		out = append(out, model.KeyedDocument{Key: key, Document: doc})
	}
	return out, rows.Err()
}

// checkName rejects dotted names; destinations map to tables in the main schema.
func checkName(dest string) error {
	if strings.TrimSpace(dest) == "" || strings.Contains(dest, ".") {
		return fmt.Errorf("sqlite docstore: invalid destination %q", dest)
	}
	return nil
}

func upsertSQL(dest string) string {
	d := ddl.SQLite
	return fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT (%s) DO UPDATE SET %s = excluded.%s",
		d.QuoteIdent(dest),
		d.QuoteIdent(ddl.ColDocID), d.QuoteIdent(ddl.ColDocument),
		d.QuoteIdent(ddl.ColDocID),
		d.QuoteIdent(ddl.ColDocument), d.QuoteIdent(ddl.ColDocument),
	)
}

// Close implements docstore.Store.
func (s *Store) Close() error { return s.db.Close() }

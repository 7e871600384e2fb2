// Package postgres stores documents in Postgres. Each destination is a table
// of (doc_id, data jsonb), created on first commit.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"docmigrate/internal/ddl"
	"docmigrate/internal/docstore"
	"docmigrate/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// newPool is a test hook.
var newPool = pgxpool.New

func init() {
	docstore.Register("postgres", func(ctx context.Context, cfg docstore.Config) (docstore.Store, error) {
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("postgres docstore: DSN must not be empty")
		}
		pool, err := newPool(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres docstore: pgxpool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres docstore: ping: %w", err)
		}
		return &Store{pool: pool}, nil
	})
}

// Store is a Postgres-backed docstore.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ docstore.Store = (*Store)(nil)

// Exists reports whether the destination table exists and has a row.
func (s *Store) Exists(ctx context.Context, dest string) (bool, error) {
	var present bool
	q := "SELECT to_regclass($1) IS NOT NULL"
	if err := s.pool.QueryRow(ctx, q, ddl.Postgres.QuoteFQN(dest)).Scan(&present); err != nil {
		return false, fmt.Errorf("postgres docstore: probe %s: %w", dest, err)
	}
	if !present {
		return false, nil
	}
	var nonEmpty bool
	q = fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s)", ddl.Postgres.QuoteFQN(dest))
	if err := s.pool.QueryRow(ctx, q).Scan(&nonEmpty); err != nil {
		return false, fmt.Errorf("postgres docstore: probe %s: %w", dest, err)
	}
	return nonEmpty, nil
}

// Commit ensures the table and upserts every document in one transaction.
func (s *Store) Commit(ctx context.Context, dest string, docs []model.KeyedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	create, err := ddl.BuildCreateTableSQL(ddl.Postgres, ddl.DocumentTable(dest))
	if err != nil {
		return err
	}
	upsert := upsertSQL(dest)

	b := &pgx.Batch{}
	for _, d := range docs {
		data, err := json.Marshal(d.Document)
		if err != nil {
			return fmt.Errorf("postgres docstore: encode %s: %w", d.Key, err)
		}
		b.Queue(upsert, d.Key, string(data))
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, create); err != nil {
			return fmt.Errorf("postgres docstore: create %s: %w", dest, err)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("postgres docstore: upsert %s: %w", dest, err)
		}
		return nil
	})
}

func upsertSQL(dest string) string {
	d := ddl.Postgres
	return fmt.Sprintf(
		"%s ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s",
		ddl.BuildInsertSQL(d, ddl.DocumentTable(dest)),
		d.QuoteIdent(ddl.ColDocID),
		d.QuoteIdent(ddl.ColDocument),
		d.QuoteIdent(ddl.ColDocument),
	)
}

// Close implements docstore.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

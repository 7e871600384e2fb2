package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"docmigrate/internal/docstore"
	"docmigrate/internal/model"

	"github.com/google/go-cmp/cmp"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func doc(key, line string, skus ...string) model.KeyedDocument {
	d := &model.Document{InputKey: key, ProjectCode: "P", Items: []model.LineItem{{Line: line}}}
	for _, s := range skus {
		d.Items[0].Skus = append(d.Items[0].Skus, model.SkuEntry{Sku: s})
	}
	return model.KeyedDocument{Key: key, Document: d}
}

func TestExistsAndCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTemp(t)

	used, err := s.Exists(ctx, "VENTA")
	if err != nil || used {
		t.Fatalf("Exists on missing table = %v, %v", used, err)
	}

	batch := []model.KeyedDocument{doc("K1", "L1", "S1", "S1"), doc("K2", "L2", "S2")}
	if err := s.Commit(ctx, "VENTA", batch); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	used, err = s.Exists(ctx, "VENTA")
	if err != nil || !used {
		t.Fatalf("Exists after commit = %v, %v", used, err)
	}

	got, err := s.Load(ctx, "VENTA")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(batch, got); diff != "" {
		t.Fatalf("stored documents (-want +got):\n%s", diff)
	}
}

func TestCommitReplacesExistingKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTemp(t)

	if err := s.Commit(ctx, "VENTA", []model.KeyedDocument{doc("K1", "L1", "S1")}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	replacement := doc("K1", "L9", "S9")
	if err := s.Commit(ctx, "VENTA", []model.KeyedDocument{replacement}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, err := s.Load(ctx, "VENTA")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]model.KeyedDocument{replacement}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestEmptyTableIsUnused(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTemp(t)

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE "VENTA" (doc_id TEXT PRIMARY KEY, data TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	used, err := s.Exists(ctx, "VENTA")
	if err != nil || used {
		t.Fatalf("Exists on empty table = %v, %v", used, err)
	}
}

func TestInvalidDestination(t *testing.T) {
	t.Parallel()
	s := openTemp(t)

	if _, err := s.Exists(context.Background(), "main.VENTA"); err == nil {
		t.Error("expected error for dotted destination")
	}
	if err := s.Commit(context.Background(), "", []model.KeyedDocument{doc("K", "L")}); err == nil {
		t.Error("expected error for empty destination")
	}
}

func TestRegisteredKind(t *testing.T) {
	t.Parallel()

	st, err := docstore.New(context.Background(), docstore.Config{Kind: "SQLite", DSN: filepath.Join(t.TempDir(), "d.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*Store); !ok {
		t.Fatalf("New returned %T", st)
	}
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"docmigrate/internal/audit"
	"docmigrate/internal/ddl"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestIdentifier(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff(pgx.Identifier{"history", "audit"}, Identifier("history.audit")); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(pgx.Identifier{"audit"}, Identifier(" audit ")); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestValuesFollowColumnOrder(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := Values([]audit.Row{{
		SkuInput: "K", DataJSON: []byte(`{"a":1}`), BatchID: 2, Checksum: "c",
		Destination: "VENTA", RunID: "r", FlushedAt: at,
	}})
	if len(got[0]) != len(ddl.AuditTable("t").Columns) {
		t.Fatalf("%d values for %d columns", len(got[0]), len(ddl.AuditTable("t").Columns))
	}
	want := []any{"K", `{"a":1}`, 2, "c", "VENTA", "r", at}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestFactory(t *testing.T) {
	orig := newPool
	t.Cleanup(func() { newPool = orig })

	boom := errors.New("refused")
	newPool = func(ctx context.Context, dsn string) (*pgxpool.Pool, error) { return nil, boom }

	if _, err := audit.New(context.Background(), audit.Config{Kind: "postgres"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := audit.New(context.Background(), audit.Config{Kind: "postgres", DSN: "postgres://x"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

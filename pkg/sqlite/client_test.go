package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenMigrateAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v REAL)`,
		`CREATE INDEX IF NOT EXISTS idx_kv_v ON kv(v)`,
	}
	if err := c.Migrate(ctx, stmts); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// second run must be a no-op
	if err := c.Migrate(ctx, stmts); err != nil {
		t.Fatalf("migrate twice: %v", err)
	}

	if _, err := c.DB().ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "a", 1.5); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var v float64
	if err := c.DB().QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, "a").Scan(&v); err != nil {
		t.Fatalf("select: %v", err)
	}
	if v != 1.5 {
		t.Fatalf("v = %v, want 1.5", v)
	}
	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMigrateReportsBadStatement(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "bad.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	if err := c.Migrate(context.Background(), []string{"CREATE TABLE ("}); err == nil {
		t.Fatal("expected migrate error")
	}
}

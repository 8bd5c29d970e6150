package db_test

import (
	"context"
	"testing"

	dbfs "github.com/garnizeh/evalassign/db"
	"github.com/garnizeh/evalassign/internal/db"
)

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()

	d, err := db.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	defer d.Close()

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	// bump a counter so a second seed run can be checked not to reset it
	if _, err := d.Exec(ctx, `UPDATE counters SET value = 7 WHERE name = 'assignments'`); err != nil {
		t.Fatalf("bump counter: %v", err)
	}

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var count int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("scan schema_migrations count: %v", err)
	}
	if count < 1 {
		t.Fatalf("expected at least 1 migration recorded, got %d", count)
	}

	for _, table := range []string{"evaluators", "establishments", "assignments", "counters", "admins", "jobs", "dead_letter_jobs"} {
		var name string
		r := d.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table)
		if err := r.Scan(&name); err != nil {
			t.Fatalf("expected %s table exists: %v", table, err)
		}
	}

	var counters, value int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM counters`).Scan(&counters); err != nil {
		t.Fatalf("count counters: %v", err)
	}
	if counters != 3 {
		t.Fatalf("expected 3 seeded counters, got %d", counters)
	}
	if err := d.QueryRow(ctx, `SELECT value FROM counters WHERE name = 'assignments'`).Scan(&value); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if value != 7 {
		t.Fatalf("seed reset the counter to %d", value)
	}
}

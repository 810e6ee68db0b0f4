package db

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestMigrateUpFromScratch(t *testing.T) {
	database := openTestDB(t)

	if err := database.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if dirty {
		t.Error("schema dirty after clean migration")
	}
	if version == 0 {
		t.Error("version still 0 after MigrateUp")
	}

	var name string
	err = database.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='consensus_runs'`,
	).Scan(&name)
	if err != nil {
		t.Fatalf("consensus_runs table missing: %v", err)
	}
}

func TestMigrateUpIdempotent(t *testing.T) {
	database := openTestDB(t)
	if err := database.MigrateUp(); err != nil {
		t.Fatalf("first MigrateUp: %v", err)
	}
	if err := database.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}
}

func TestMigrateDownRemovesSchema(t *testing.T) {
	database := openTestDB(t)
	if err := database.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if err := database.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}

	var count int
	err := database.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='consensus_runs'`,
	).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Error("consensus_runs table survived MigrateDown")
	}
}

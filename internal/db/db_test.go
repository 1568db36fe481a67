package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

// Fixed clock for deterministic "today" in tests.
var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	d.now = func() time.Time { return testNow }
	t.Cleanup(func() { d.Close() })
	return d
}

// record is a shorthand for RecordUsage that fails the test on
// error.
func record(
	t *testing.T, d *DB,
	user, app, title string, duration int64, ts string,
) RecordResult {
	t.Helper()
	res, err := d.RecordUsage(
		context.Background(), user, app, title, duration, ts,
	)
	if err != nil {
		t.Fatalf("RecordUsage(%s/%s): %v", user, app, err)
	}
	return res
}

// countRows returns the row count of a table.
func countRows(t *testing.T, d *DB, table string) int {
	t.Helper()
	var n int
	err := d.writer.QueryRow(
		"SELECT COUNT(*) FROM " + table,
	).Scan(&n)
	if err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

// execWriter runs arbitrary SQL on the write connection, for
// test fixtures like the legacy table.
func execWriter(t *testing.T, d *DB, query string, args ...any) {
	t.Helper()
	if err := d.Update(func(tx *sql.Tx) error {
		_, err := tx.Exec(query, args...)
		return err
	}); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	d := testDB(t)
	for _, table := range []string{
		"apps", "activity_logs", "tracked_identifiers",
	} {
		ok, err := d.tableExists(table)
		if err != nil {
			t.Fatalf("tableExists(%s): %v", table, err)
		}
		if !ok {
			t.Errorf("table %s missing after Open", table)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	d, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	record(t, d, "alice", "chrome.exe", "YouTube", 60, "2025-06-01T09:00:00Z")
	if err := d.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	d2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer d2.Close()

	if got := countRows(t, d2, "activity_logs"); got != 1 {
		t.Errorf("got %d usage rows after reopen, want 1", got)
	}
}

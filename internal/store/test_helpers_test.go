package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/busstats/internal/record"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a record at the given minute of 2019-02-04 08:00.
func createTestRecord(line string, minute, delay, stopID int) record.Record {
	ts := time.Date(2019, 2, 4, 8, minute, 0, 0, time.Local)
	return record.New(line, ts, delay, stopID)
}

// pragma reads the current value of a SQLite pragma.
func pragma(t *testing.T, s *Store, name string) string {
	t.Helper()
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		t.Fatalf("query %s: %v", name, err)
	}
	return value
}

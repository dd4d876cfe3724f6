package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingObserver) ObserveQuery(op string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "timed.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// TestTimedDB_ReportsEveryCall verifies each wrapped method reaches the observer.
func TestTimedDB_ReportsEveryCall(t *testing.T) {
	obs := &recordingObserver{}
	tdb := NewTimedDB(openTimedTestDB(t), obs, 0)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}

	rows, err := tdb.QueryContext(ctx, "SELECT id, val FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	count := 0
	for rows.Next() {
		count++
	}
	rows.Close()
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}

	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil {
		t.Fatalf("QueryRowContext: %v", err)
	}
	if val != "hello" {
		t.Errorf("val = %q, want hello", val)
	}

	tx, err := tdb.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	tx.Rollback()

	want := []string{"exec", "query", "query_row", "begin_tx"}
	if obs.count() != len(want) {
		t.Fatalf("observed %v, want %v", obs.ops, want)
	}
	for i, op := range want {
		if obs.ops[i] != op {
			t.Errorf("op[%d] = %q, want %q", i, obs.ops[i], op)
		}
	}
}

// TestTimedDB_NilObserver verifies the wrapper works without an observer.
func TestTimedDB_NilObserver(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), nil, time.Nanosecond)
	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO test (id, val) VALUES ('1', 'x')"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	if tdb.threshold != time.Nanosecond {
		t.Errorf("threshold = %v", tdb.threshold)
	}
}

// TestTimedDB_DefaultThreshold verifies non-positive thresholds fall back.
func TestTimedDB_DefaultThreshold(t *testing.T) {
	tdb := NewTimedDB(openTimedTestDB(t), nil, -1)
	if tdb.threshold != DefaultSlowQuery {
		t.Errorf("threshold = %v, want %v", tdb.threshold, DefaultSlowQuery)
	}
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pondside/heartbeat/internal/history"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "ticks.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestRecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 4, 23, 30, 0, 0, time.UTC)
	recs := []history.Record{
		{StartedAt: base, FinishedAt: base.Add(40 * time.Second), ExitCode: 0},
		{StartedAt: base.Add(20 * time.Minute), FinishedAt: base.Add(20 * time.Minute), Skipped: true, BlockingPID: 4242},
		{StartedAt: base.Add(40 * time.Minute), FinishedAt: base.Add(41 * time.Minute), ExitCode: 3},
	}
	for i, r := range recs {
		if err := db.RecordTick(ctx, r); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := db.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	// Newest first.
	if got[0].ExitCode != 3 || got[2].ExitCode != 0 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got[1].Skipped || got[1].BlockingPID != 4242 {
		t.Fatalf("skip record lost detail: %+v", got[1])
	}
}

func TestRecentLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 5; i++ {
		if err := db.RecordTick(ctx, history.Record{StartedAt: now, FinishedAt: now}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit not applied, got %d", len(got))
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

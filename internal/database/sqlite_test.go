package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dirkeep/internal/dk"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createRun(t *testing.T, db *SQLiteDatabase, id string, startedAt time.Time) {
	t.Helper()
	err := db.CreateRun(dk.RunRecord{
		ID:           id,
		TimestampTag: dk.TimestampTag(startedAt),
		Source:       "/etc/dirkeep.toml",
		StartedAt:    startedAt,
		Status:       dk.RunStatusRunning,
	})
	if err != nil {
		t.Fatalf("CreateRun(%s) error = %v", id, err)
	}
}

func TestSQLiteDatabase_CreateAndFinishRun(t *testing.T) {
	db := newTestDB(t)
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	createRun(t, db, "run-1", started)

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if runs[0].Status != dk.RunStatusRunning {
		t.Errorf("Status = %q, want %q", runs[0].Status, dk.RunStatusRunning)
	}
	if runs[0].FinishedAt != nil {
		t.Errorf("FinishedAt = %v, want nil", runs[0].FinishedAt)
	}
	if runs[0].TimestampTag != "20240301100000" {
		t.Errorf("TimestampTag = %q, want %q", runs[0].TimestampTag, "20240301100000")
	}
	if !runs[0].StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", runs[0].StartedAt, started)
	}

	finished := started.Add(2 * time.Second)
	if err := db.FinishRun("run-1", finished, dk.RunStatusSuccess); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	runs, err = db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if runs[0].Status != dk.RunStatusSuccess {
		t.Errorf("Status = %q, want %q", runs[0].Status, dk.RunStatusSuccess)
	}
	if runs[0].FinishedAt == nil || !runs[0].FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", runs[0].FinishedAt, finished)
	}
}

func TestSQLiteDatabase_FinishRun_Unknown(t *testing.T) {
	db := newTestDB(t)
	if err := db.FinishRun("missing", time.Now(), dk.RunStatusError); err == nil {
		t.Error("FinishRun() expected error for unknown run")
	}
}

func TestSQLiteDatabase_ListRuns_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	createRun(t, db, "run-a", base)
	createRun(t, db, "run-c", base.Add(2*time.Hour))
	createRun(t, db, "run-b", base.Add(time.Hour))

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("runs = [%s %s], want [run-c run-b]", runs[0].ID, runs[1].ID)
	}

	all, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(ListRuns(0)) = %d, want 3", len(all))
	}
}

func TestSQLiteDatabase_RecordOutcome(t *testing.T) {
	db := newTestDB(t)
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	createRun(t, db, "run-1", started)

	outcomes := []dk.OperationOutcome{
		{
			Sequence:     1,
			Entry:        dk.DirectoryEntry{Path: "/data/docs", Action: dk.ActionArchive, IncludeSubdirectories: true},
			FilesTouched: 2,
			BytesTouched: 27,
			ArchiveFile:  "/backup/docs_20240301100000.zip",
			StartedAt:    started,
			FinishedAt:   started,
		},
		{
			Sequence:   2,
			Entry:      dk.DirectoryEntry{Path: "/data/docs", Action: dk.ActionPurge},
			Skipped:    1,
			StartedAt:  started,
			FinishedAt: started,
			Err:        errors.New("delete error: remove file /data/docs/a: permission denied"),
		},
	}
	// recorded out of order on purpose
	for _, i := range []int{1, 0} {
		if err := db.RecordOutcome("run-1", outcomes[i]); err != nil {
			t.Fatalf("RecordOutcome() error = %v", err)
		}
	}

	got, err := db.ListOutcomes("run-1")
	if err != nil {
		t.Fatalf("ListOutcomes() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(outcomes) = %d, want 2", len(got))
	}

	first := got[0]
	if first.Sequence != 1 || first.Action != "archive" || !first.IncludeSubdirs {
		t.Errorf("outcome[0] = %+v", first)
	}
	if first.FilesTouched != 2 || first.BytesTouched != 27 {
		t.Errorf("outcome[0] counts = %d files %d bytes, want 2 files 27 bytes", first.FilesTouched, first.BytesTouched)
	}
	if first.ArchiveFile != "/backup/docs_20240301100000.zip" {
		t.Errorf("outcome[0].ArchiveFile = %q", first.ArchiveFile)
	}
	if first.Error != "" {
		t.Errorf("outcome[0].Error = %q, want empty", first.Error)
	}

	second := got[1]
	if second.Action != "purge" || second.Skipped != 1 {
		t.Errorf("outcome[1] = %+v", second)
	}
	if second.Error == "" {
		t.Error("outcome[1].Error is empty, want recorded error")
	}

	runs, err := db.ListRuns(1)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if runs[0].EntryCount != 2 || runs[0].FailedCount != 1 {
		t.Errorf("EntryCount/FailedCount = %d/%d, want 2/1", runs[0].EntryCount, runs[0].FailedCount)
	}
}

func TestSQLiteDatabase_RecordOutcome_UnknownRun(t *testing.T) {
	db := newTestDB(t)
	err := db.RecordOutcome("missing", dk.OperationOutcome{
		Sequence: 1,
		Entry:    dk.DirectoryEntry{Path: "/tmp", Action: dk.ActionMeasure},
	})
	if err == nil {
		t.Error("RecordOutcome() expected foreign key error for unknown run")
	}
}

func TestSQLiteDatabase_ListOutcomes_Empty(t *testing.T) {
	db := newTestDB(t)
	got, err := db.ListOutcomes("nothing")
	if err != nil {
		t.Fatalf("ListOutcomes() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(outcomes) = %d, want 0", len(got))
	}
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	db := newTestDB(t)
	if err := db.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
}

func TestSQLiteDatabase_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	createRun(t, db, "run-1", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteDatabase(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	if reopened.Path() != path {
		t.Errorf("Path() = %q, want %q", reopened.Path(), path)
	}
	runs, err := reopened.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Errorf("runs = %+v, want run-1", runs)
	}
}

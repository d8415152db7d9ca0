package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"remux/internal/batch"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(context.Background(), path, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func finishedSnapshot(batchID string) batch.Snapshot {
	return batch.Snapshot{
		BatchID: batchID,
		Phase:   batch.PhaseIdle,
		Items: []batch.Item{
			{
				SourcePath:  "/media/a.mkv",
				DisplayName: "a.mkv",
				State:       batch.ItemDone,
				OutputPath:  "/media/a.mp4",
			},
			{
				SourcePath:  "/media/b.avi",
				DisplayName: "b.avi",
				State:       batch.ItemFailed,
				ErrorDetail: "unsupported codec",
			},
		},
		ProgressRatio: 1.0,
		Outcome:       batch.OutcomeCompletedWithErrors,
	}
}

func TestRecordBatchRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.RecordBatch(ctx, finishedSnapshot("batch-1")); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}

	records, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}

	record := records[0]
	if record.BatchID != "batch-1" {
		t.Fatalf("unexpected batch id %q", record.BatchID)
	}
	if record.Outcome != "completed with errors" || record.Total != 2 || record.Done != 1 || record.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", record)
	}
	if len(record.Items) != 2 {
		t.Fatalf("expected two items, got %d", len(record.Items))
	}
	if record.Items[0].SourcePath != "/media/a.mkv" || record.Items[0].OutputPath != "/media/a.mp4" {
		t.Fatalf("unexpected first item: %+v", record.Items[0])
	}
	if record.Items[1].State != "failed" || record.Items[1].ErrorDetail != "unsupported codec" {
		t.Fatalf("unexpected second item: %+v", record.Items[1])
	}
}

func TestRecordBatchIgnoresEmptySnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.RecordBatch(ctx, batch.Snapshot{}); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	records, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestListNewestFirstAndLimit(t *testing.T) {
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := openTestStore(t, withClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := store.RecordBatch(ctx, finishedSnapshot(fmt.Sprintf("batch-%d", i))); err != nil {
			t.Fatalf("RecordBatch %d: %v", i, err)
		}
	}

	records, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected two records, got %d", len(records))
	}
	if records[0].BatchID != "batch-3" || records[1].BatchID != "batch-2" {
		t.Fatalf("expected newest first, got %q then %q", records[0].BatchID, records[1].BatchID)
	}
}

func TestKeepLastPrunesOldBatches(t *testing.T) {
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := openTestStore(t, WithKeepLast(2), withClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if err := store.RecordBatch(ctx, finishedSnapshot(fmt.Sprintf("batch-%d", i))); err != nil {
			t.Fatalf("RecordBatch %d: %v", i, err)
		}
	}

	records, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected retention of two batches, got %d", len(records))
	}
	if records[0].BatchID != "batch-4" || records[1].BatchID != "batch-3" {
		t.Fatalf("expected two newest batches kept, got %q and %q", records[0].BatchID, records[1].BatchID)
	}

	// Pruned batches must not leave orphaned items behind.
	for _, record := range records {
		if len(record.Items) != 2 {
			t.Fatalf("expected items for %q, got %d", record.BatchID, len(record.Items))
		}
	}
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.db.ExecContext(ctx, `UPDATE schema_info SET version = ?`, schemaVersion+1); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Open(ctx, path); err == nil {
		t.Fatal("expected newer-schema error")
	}
}

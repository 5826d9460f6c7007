package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/attention/pkg/models"
)

func openTestSQLiteStore(t *testing.T) *SQLiteSourceStore {
	t.Helper()
	store, err := OpenSQLiteSourceStore(filepath.Join(t.TempDir(), "db", "sources.db"), fixedClock)
	if err != nil {
		t.Fatalf("OpenSQLiteSourceStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_SaveAndLoadPreservesOrder(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()
	in := []models.Source{
		models.TaskRow{ID: "z", Title: "last id first", ScheduledFor: ptr(refNow)},
		models.TaskRow{ID: "a", Title: "first id second", Labels: []string{"x"}},
	}
	if err := store.Save(ctx, models.SourceTask, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load(ctx, models.SourceTask)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].SourceKey() != "z" || out[1].SourceKey() != "a" {
		t.Errorf("order = %s,%s, want insertion order", out[0].SourceKey(), out[1].SourceKey())
	}
	row := out[0].(models.TaskRow)
	if row.ScheduledFor == nil || !row.ScheduledFor.Equal(refNow) {
		t.Errorf("ScheduledFor = %v", row.ScheduledFor)
	}
}

func TestSQLiteStore_SaveReplacesOnlyThatType(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()
	_ = store.Save(ctx, models.SourceTask, []models.Source{models.TaskRow{ID: "t1", Title: "a"}})
	_ = store.Save(ctx, models.SourceInbox, []models.Source{models.InboxMessage{ID: "m1"}})
	_ = store.Save(ctx, models.SourceTask, []models.Source{models.TaskRow{ID: "t2", Title: "b"}})

	tasks, _ := store.Load(ctx, models.SourceTask)
	inbox, _ := store.Load(ctx, models.SourceInbox)
	if len(tasks) != 1 || tasks[0].SourceKey() != "t2" {
		t.Errorf("tasks = %v", tasks)
	}
	if len(inbox) != 1 {
		t.Errorf("inbox = %v", inbox)
	}
}

func TestSQLiteStore_Upsert(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()
	if err := store.Upsert(ctx, models.ReadingItem{ID: "r1", Title: "v1"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, models.ReadingItem{ID: "r1", Title: "v2"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	items, _ := store.Load(ctx, models.SourceReadingItem)
	if len(items) != 1 || items[0].(models.ReadingItem).Title != "v2" {
		t.Errorf("items = %v", items)
	}
}

func TestSQLiteStore_ResolveRecurringAdvancesDueDate(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()
	due := refNow.AddDate(0, 0, -1)
	_ = store.Upsert(ctx, models.RecurringCommitment{ID: "rc", Title: "LP update", Cadence: "weekly", NextDueAt: &due, IsActive: true})

	if err := store.Resolve(ctx, models.SourceRecurringCommitment, "rc"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	items, _ := store.Load(ctx, models.SourceRecurringCommitment)
	rc := items[0].(models.RecurringCommitment)
	if rc.LastCompletedAt == nil || !rc.LastCompletedAt.Equal(refNow) {
		t.Errorf("LastCompletedAt = %v", rc.LastCompletedAt)
	}
	want := due.AddDate(0, 0, 7)
	if rc.NextDueAt == nil || !rc.NextDueAt.Equal(want) {
		t.Errorf("NextDueAt = %v, want %v", rc.NextDueAt, want)
	}
}

func TestSQLiteStore_SnoozeAndNotFound(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()
	_ = store.Upsert(ctx, models.PipelineCompany{ID: "d1", Name: "Beta"})

	until := refNow.Add(72 * time.Hour)
	if err := store.Snooze(ctx, models.SourcePipelineCompany, "d1", until); err != nil {
		t.Fatalf("Snooze: %v", err)
	}
	items, _ := store.Load(ctx, models.SourcePipelineCompany)
	if c := items[0].(models.PipelineCompany); c.SnoozedUntil == nil || !c.SnoozedUntil.Equal(until) {
		t.Errorf("SnoozedUntil = %v", c.SnoozedUntil)
	}

	if err := store.Snooze(ctx, models.SourcePipelineCompany, "nope", until); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_SnoozeCalendarRejected(t *testing.T) {
	store := openTestSQLiteStore(t)
	ctx := context.Background()
	_ = store.Upsert(ctx, models.CalendarEvent{ID: "e1", Title: "Board"})
	if err := store.Snooze(ctx, models.SourceCalendarEvent, "e1", refNow); !errors.Is(err, ErrNotSnoozable) {
		t.Errorf("error = %v, want ErrNotSnoozable", err)
	}
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.db")
	ctx := context.Background()

	first, err := OpenSQLiteSourceStore(path, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	_ = first.Upsert(ctx, models.TaskRow{ID: "t1", Title: "persisted"})
	_ = first.Close()

	second, err := OpenSQLiteSourceStore(path, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	items, err := second.Load(ctx, models.SourceTask)
	if err != nil || len(items) != 1 {
		t.Errorf("Load after reopen = %v, %v", items, err)
	}
}

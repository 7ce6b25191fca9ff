package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/testutil"
)

func TestEventRepositoryBatchInsertAndRange(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	events := []schema.ScheduledEvent{
		{ID: "evt-1", ActivityID: "deep-work", StartTime: base, EndTime: base.Add(90 * time.Minute), Duration: 90},
		{ID: "evt-2", ActivityID: "exercise", StartTime: base.Add(3 * time.Hour), EndTime: base.Add(4 * time.Hour), Duration: 60},
		{ID: "evt-3", ActivityID: "review", StartTime: base.Add(48 * time.Hour), EndTime: base.Add(49 * time.Hour), Duration: 60},
	}
	if err := repo.BatchInsert(ctx, events); err != nil {
		t.Fatalf("BatchInsert error: %v", err)
	}

	got, err := repo.GetByTimeRange(ctx, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events inside the day, got %d", len(got))
	}
	if got[0].ID != "evt-1" || got[1].ID != "evt-2" {
		t.Fatalf("events not ordered by start time: %v, %v", got[0].ID, got[1].ID)
	}
}

func TestEventRepositoryGetInHorizon(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	horizon := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	inside := schema.ScheduledEvent{ID: "in", StartTime: horizon.Add(2 * 24 * time.Hour), EndTime: horizon.Add(2*24*time.Hour + time.Hour), Duration: 60}
	outside := schema.ScheduledEvent{ID: "out", StartTime: horizon.Add(10 * 24 * time.Hour), EndTime: horizon.Add(10*24*time.Hour + time.Hour), Duration: 60}
	before := schema.ScheduledEvent{ID: "past", StartTime: horizon.Add(-time.Hour), EndTime: horizon, Duration: 60}
	if err := repo.BatchInsert(ctx, []schema.ScheduledEvent{inside, outside, before}); err != nil {
		t.Fatalf("BatchInsert error: %v", err)
	}

	got, err := repo.GetInHorizon(ctx, horizon, 7*96)
	if err != nil {
		t.Fatalf("GetInHorizon error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "in" {
		t.Fatalf("unexpected horizon events: %+v", got)
	}
}

func TestEventRepositoryUpdateTimesAndStatus(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	evt := schema.ScheduledEvent{ID: "evt-1", ActivityID: "deep-work", StartTime: start, EndTime: start.Add(time.Hour), Duration: 60, Status: schema.EventStatusPredicted}
	if err := repo.Create(ctx, &evt); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	moved := start.Add(2 * time.Hour)
	if err := repo.UpdateTimes(ctx, "evt-1", moved, moved.Add(time.Hour)); err != nil {
		t.Fatalf("UpdateTimes error: %v", err)
	}
	if err := repo.UpdateStatus(ctx, "evt-1", schema.EventStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	got, err := repo.GetByID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if !got.StartTime.Equal(moved) {
		t.Fatalf("start not moved: %v", got.StartTime)
	}
	if got.Status != schema.EventStatusCompleted {
		t.Fatalf("status = %v", got.Status)
	}
}

func TestEventRepositoryUpsertReplaces(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	evt := schema.ScheduledEvent{ID: "evt-1", Title: "v1", StartTime: start, EndTime: start.Add(time.Hour), Duration: 60}
	if err := repo.Upsert(ctx, &evt); err != nil {
		t.Fatalf("first Upsert error: %v", err)
	}
	evt.Title = "v2"
	if err := repo.Upsert(ctx, &evt); err != nil {
		t.Fatalf("second Upsert error: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	got, err := repo.GetByID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Title != "v2" {
		t.Fatalf("title = %q", got.Title)
	}
}

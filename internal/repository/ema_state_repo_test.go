package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/testutil"
)

func TestEmaStateRepositoryUpsertAndGet(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEmaStateRepository(db)
	ctx := context.Background()

	st := &schema.FrequencyEmaState{
		ActivityID:      "a",
		Scope:           "DAILY",
		EmaValue:        2.0,
		SampleSize:      1,
		OpenBucketKey:   "2024-06-03",
		OpenBucketCount: 2,
	}
	if err := repo.Upsert(ctx, st); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	st.EmaValue = 2.5
	st.OpenBucketCount = 3
	if err := repo.Upsert(ctx, st); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	got, err := repo.Get(ctx, "a", "DAILY")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got == nil || got.EmaValue != 2.5 || got.OpenBucketCount != 3 {
		t.Fatalf("got=%+v, want ema 2.5 open count 3", got)
	}

	missing, err := repo.Get(ctx, "a", "WEEKLY")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if missing != nil {
		t.Fatalf("got=%+v, want nil for missing scope", missing)
	}
}

func TestEmaStateRepositoryDirtyAndStale(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEmaStateRepository(db)
	ctx := context.Background()

	for _, scope := range []string{"DAILY", "WEEKLY"} {
		if err := repo.Upsert(ctx, &schema.FrequencyEmaState{ActivityID: "a", Scope: scope}); err != nil {
			t.Fatalf("Upsert error: %v", err)
		}
	}
	if err := repo.Upsert(ctx, &schema.FrequencyEmaState{ActivityID: "b", Scope: "DAILY"}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	if err := repo.MarkDirtyForActivity(ctx, "a"); err != nil {
		t.Fatalf("MarkDirtyForActivity error: %v", err)
	}

	// cutoff in the past: only the two dirty rows qualify
	rows, err := repo.GetDirtyOrStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetDirtyOrStale error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2 dirty", len(rows))
	}
	for _, row := range rows {
		if row.ActivityID != "a" || !row.Dirty {
			t.Fatalf("row=%+v, want dirty rows of activity a", row)
		}
	}

	// cutoff in the future: everything is stale
	rows, err = repo.GetDirtyOrStale(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GetDirtyOrStale error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d, want all 3", len(rows))
	}
}

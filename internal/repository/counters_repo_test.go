package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/testutil"
)

func TestMarkovRepositoryIncrementAccumulates(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewMarkovRepository(db)
	ctx := context.Background()
	now := time.Now()

	if err := repo.Increment(ctx, "a", "b", 1, now); err != nil {
		t.Fatalf("Increment error: %v", err)
	}
	if err := repo.Increment(ctx, "a", "b", 2, now); err != nil {
		t.Fatalf("Increment error: %v", err)
	}
	if err := repo.Increment(ctx, "a", "c", 1, now); err != nil {
		t.Fatalf("Increment error: %v", err)
	}

	rows, err := repo.GetFrom(ctx, "a")
	if err != nil {
		t.Fatalf("GetFrom error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	// ordered by to_activity_id
	if rows[0].ToActivityID != "b" || rows[0].Count != 3 {
		t.Fatalf("edge a->b = %+v, want count 3", rows[0])
	}
	if rows[1].ToActivityID != "c" || rows[1].Count != 1 {
		t.Fatalf("edge a->c = %+v, want count 1", rows[1])
	}
}

func TestMarkovRepositoryReset(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewMarkovRepository(db)
	ctx := context.Background()

	if err := repo.Increment(ctx, "a", "b", 1, time.Now()); err != nil {
		t.Fatalf("Increment error: %v", err)
	}
	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	rows, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows=%d after reset, want 0", len(rows))
	}
}

func TestHNetRepositoryArcUpsertKey(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewHNetRepository(db)
	ctx := context.Background()
	now := time.Now()

	// same arc twice, different scope once
	if err := repo.IncrementArc(ctx, "a", "b", schema.ScopeSameDay, 0b0000001, 1, now); err != nil {
		t.Fatalf("IncrementArc error: %v", err)
	}
	if err := repo.IncrementArc(ctx, "a", "b", schema.ScopeSameDay, 0b0000001, 1, now); err != nil {
		t.Fatalf("IncrementArc error: %v", err)
	}
	if err := repo.IncrementArc(ctx, "a", "b", schema.ScopeSameWeek, 0b1111111, 1, now); err != nil {
		t.Fatalf("IncrementArc error: %v", err)
	}

	rows, err := repo.GetArcs(ctx)
	if err != nil {
		t.Fatalf("GetArcs error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	for _, row := range rows {
		switch row.TimeScope {
		case schema.ScopeSameDay:
			if row.Count != 2 {
				t.Fatalf("same-day arc count=%d, want 2", row.Count)
			}
		case schema.ScopeSameWeek:
			if row.Count != 1 {
				t.Fatalf("same-week arc count=%d, want 1", row.Count)
			}
		}
	}
}

func TestHNetRepositoryPairCanonicalOrder(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewHNetRepository(db)
	ctx := context.Background()
	now := time.Now()

	// (b, a) and (a, b) around the same anchor must land on one row
	if err := repo.IncrementPair(ctx, "x", "b", "a", schema.PairPredecessor, schema.ScopeSameDay, 0b0000010, 1, 1, now); err != nil {
		t.Fatalf("IncrementPair error: %v", err)
	}
	if err := repo.IncrementPair(ctx, "x", "a", "b", schema.PairPredecessor, schema.ScopeSameDay, 0b0000010, 1, 1, now); err != nil {
		t.Fatalf("IncrementPair error: %v", err)
	}

	rows, err := repo.GetPairsForAnchor(ctx, "x")
	if err != nil {
		t.Fatalf("GetPairsForAnchor error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(rows))
	}
	got := rows[0]
	if got.FirstActivityID != "a" || got.SecondActivityID != "b" {
		t.Fatalf("pair=(%s,%s), want canonical (a,b)", got.FirstActivityID, got.SecondActivityID)
	}
	if got.CoOccurrenceCount != 2 || got.AnchorSampleSize != 2 {
		t.Fatalf("counts=(%d,%d), want (2,2)", got.CoOccurrenceCount, got.AnchorSampleSize)
	}
}

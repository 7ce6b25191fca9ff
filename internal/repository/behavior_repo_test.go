package repository

import (
	"context"
	"testing"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/testutil"
)

func TestBehaviorRepositoryUpsertIdempotentKey(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewBehaviorRepository(db)
	ctx := context.Background()

	first := &schema.UserBehavior{
		ActivityID: "a",
		Metric:     schema.MetricObservedFrequency,
		KeyParam:   string(schema.PeriodDaily),
		Value:      1.5,
		SampleSize: 3,
	}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	// same key overwrites value instead of inserting
	second := &schema.UserBehavior{
		ActivityID: "a",
		Metric:     schema.MetricObservedFrequency,
		KeyParam:   string(schema.PeriodDaily),
		Value:      2.25,
		SampleSize: 4,
	}
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	rows, err := repo.GetForActivity(ctx, "a")
	if err != nil {
		t.Fatalf("GetForActivity error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(rows))
	}
	if rows[0].Value != 2.25 || rows[0].SampleSize != 4 {
		t.Fatalf("row=%+v, want value 2.25 sample 4", rows[0])
	}
	if rows[0].LastUpdated.IsZero() {
		t.Fatalf("last_updated not set")
	}
}

func TestBehaviorRepositoryGetByMetric(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewBehaviorRepository(db)
	ctx := context.Background()

	rows := []*schema.UserBehavior{
		{ActivityID: "a", Metric: schema.MetricHeatmapProbability, KeyParam: "36", Value: 0.8},
		{ActivityID: "a", Metric: schema.MetricObservedFrequency, KeyParam: string(schema.PeriodWeekly), Value: 3},
		{ActivityID: "b", Metric: schema.MetricHeatmapProbability, KeyParam: "40", Value: 0.2},
	}
	if err := repo.UpsertBatch(ctx, rows); err != nil {
		t.Fatalf("UpsertBatch error: %v", err)
	}

	heat, err := repo.GetByMetric(ctx, schema.MetricHeatmapProbability)
	if err != nil {
		t.Fatalf("GetByMetric error: %v", err)
	}
	if len(heat) != 2 {
		t.Fatalf("heatmap rows=%d, want 2", len(heat))
	}
}

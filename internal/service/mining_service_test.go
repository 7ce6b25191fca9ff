package service

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/TimeLoom/internal/eventbus"
	"github.com/yuqie6/TimeLoom/internal/mining"
	"github.com/yuqie6/TimeLoom/internal/repository"
	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/testutil"
	"gorm.io/gorm"
)

func newMiningFixture(t *testing.T, db *gorm.DB) *MiningService {
	t.Helper()
	historyRepo := repository.NewHistoryRepository(db)
	writer := mining.NewHistoryWriter(
		nil,
		historyRepo,
		repository.NewEmaStateRepository(db),
		repository.NewBehaviorRepository(db),
	)
	analyzer := mining.NewHistoryAnalyzer(nil, nil)
	return NewMiningService(
		writer,
		analyzer,
		historyRepo,
		repository.NewMarkovRepository(db),
		repository.NewHNetRepository(db),
		eventbus.NewHub(),
		"UTC",
	)
}

func recordAt(t *testing.T, svc *MiningService, activityID string, start time.Time) {
	t.Helper()
	_, err := svc.RecordCompletion(context.Background(), mining.RecordCompletionInput{
		ActivityID:      activityID,
		ActualStartTime: start,
		ActualDuration:  30,
		TimeZone:        "UTC",
	})
	if err != nil {
		t.Fatalf("RecordCompletion(%s) error: %v", activityID, err)
	}
}

func TestRecordCompletionPersistsHistoryAndEmaState(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := newMiningFixture(t, db)
	ctx := context.Background()

	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	id, err := svc.RecordCompletion(ctx, mining.RecordCompletionInput{
		ActivityID:      "deep-work",
		ActualStartTime: start,
		ActualDuration:  45,
		TimeZone:        "UTC",
		Notes:           "morning block",
	})
	if err != nil {
		t.Fatalf("RecordCompletion error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated history id")
	}

	rows, err := repository.NewHistoryRepository(db).GetCompleted(ctx)
	if err != nil {
		t.Fatalf("GetCompleted error: %v", err)
	}
	if len(rows) != 1 || rows[0].ActivityID != "deep-work" {
		t.Fatalf("unexpected history rows: %+v", rows)
	}
	if rows[0].LocalDayBucket == "" || rows[0].BucketTimezone != "UTC" {
		t.Fatalf("bucket keys not derived: %+v", rows[0])
	}

	states, err := repository.NewEmaStateRepository(db).GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll states error: %v", err)
	}
	if len(states) == 0 {
		t.Fatal("expected EMA state rows after recording a completion")
	}
}

func TestReplayHistoryRebuildsCounters(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := newMiningFixture(t, db)
	ctx := context.Background()

	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	recordAt(t, svc, "wake", base)
	recordAt(t, svc, "coffee", base.Add(30*time.Minute))
	recordAt(t, svc, "deep-work", base.Add(time.Hour))

	// pre-seed a bogus transition; replay must wipe it
	markovRepo := repository.NewMarkovRepository(db)
	if err := markovRepo.Increment(ctx, "ghost-a", "ghost-b", 5, base); err != nil {
		t.Fatalf("seed transition: %v", err)
	}

	result, err := svc.ReplayHistory(ctx)
	if err != nil {
		t.Fatalf("ReplayHistory error: %v", err)
	}
	if result.CompletedEvents != 3 {
		t.Fatalf("completed events = %d", result.CompletedEvents)
	}
	if result.MarkovUpdates == 0 {
		t.Fatal("expected markov updates from a three-event chain")
	}

	transitions, err := markovRepo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll transitions error: %v", err)
	}
	for _, tr := range transitions {
		if tr.FromActivityID == "ghost-a" {
			t.Fatalf("stale transition survived replay: %+v", tr)
		}
	}
	found := false
	for _, tr := range transitions {
		if tr.FromActivityID == "wake" && tr.ToActivityID == "coffee" && tr.Count == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("wake→coffee transition missing: %+v", transitions)
	}

	// replay is idempotent
	again, err := svc.ReplayHistory(ctx)
	if err != nil {
		t.Fatalf("second ReplayHistory error: %v", err)
	}
	if again.MarkovUpdates != result.MarkovUpdates {
		t.Fatalf("replay not idempotent: %d vs %d", again.MarkovUpdates, result.MarkovUpdates)
	}
}

func TestReconcilePublishesObservedFrequency(t *testing.T) {
	db := testutil.OpenTestDB(t)
	svc := newMiningFixture(t, db)
	ctx := context.Background()

	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		recordAt(t, svc, "exercise", base.AddDate(0, 0, day))
	}

	result, err := svc.Reconcile(ctx, []string{"exercise"})
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if result.Activities != 1 {
		t.Fatalf("reconciled activities = %d", result.Activities)
	}
	if result.RebuiltScopes == 0 {
		t.Fatal("expected at least one rebuilt scope")
	}

	rows, err := repository.NewBehaviorRepository(db).GetByMetric(ctx, schema.MetricObservedFrequency)
	if err != nil {
		t.Fatalf("GetByMetric error: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected published frequency rows")
	}
	for _, row := range rows {
		if row.ActivityID != "exercise" {
			t.Fatalf("unexpected behavior row: %+v", row)
		}
	}
}

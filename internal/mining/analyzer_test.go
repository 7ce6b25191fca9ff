package mining

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/TimeLoom/internal/bucket"
	"github.com/yuqie6/TimeLoom/internal/repository"
	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/testutil"
)

func addHistoryRow(t *testing.T, repo *repository.HistoryRepository, activityID string, startUTC time.Time) {
	t.Helper()
	keys := bucket.DeriveKeys(startUTC, "UTC")
	dur := 15.0
	row := schema.ActivityHistory{
		ActivityID:       activityID,
		ActualStartTime:  &startUTC,
		ActualDuration:   &dur,
		LocalDayBucket:   keys.Day,
		LocalWeekBucket:  keys.Week,
		LocalMonthBucket: keys.Month,
		BucketTimezone:   keys.TimeZone,
		WasCompleted:     true,
	}
	if err := repo.Append(context.Background(), &row); err != nil {
		t.Fatalf("Append error: %v", err)
	}
}

func TestHistoryAnalyzerReplayPersistsCounts(t *testing.T) {
	db := testutil.OpenTestDB(t)
	history := repository.NewHistoryRepository(db)
	markovRepo := repository.NewMarkovRepository(db)
	hnetRepo := repository.NewHNetRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	addHistoryRow(t, history, "A", base)
	addHistoryRow(t, history, "B", base.Add(20*time.Minute))
	addHistoryRow(t, history, "C", base.Add(50*time.Minute))
	// non-completed rows are filtered out of the replay
	if err := history.Append(ctx, &schema.ActivityHistory{ActivityID: "D", WasSkipped: true}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	rows, err := history.GetCompleted(ctx)
	if err != nil {
		t.Fatalf("GetCompleted error: %v", err)
	}
	// the skipped row is gone already, but Replay filters independently too
	allRows := append(rows, schema.ActivityHistory{ActivityID: "D", WasSkipped: true})

	analyzer := NewHistoryAnalyzer(nil, nil)
	res, err := analyzer.Replay(ctx, allRows, markovRepo, hnetRepo)
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if res.CompletedEvents != 3 {
		t.Fatalf("completed=%d, want 3", res.CompletedEvents)
	}
	if res.MarkovUpdates != 2 {
		t.Fatalf("markov=%d, want A->B and B->C", res.MarkovUpdates)
	}

	persisted, err := markovRepo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll error: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("persisted=%d, want 2", len(persisted))
	}

	arcs, err := hnetRepo.GetArcs(ctx)
	if err != nil {
		t.Fatalf("GetArcs error: %v", err)
	}
	if len(arcs) == 0 {
		t.Fatalf("no arcs persisted")
	}
}

func TestHistoryAnalyzerMineBatchDoesNotPersist(t *testing.T) {
	db := testutil.OpenTestDB(t)
	markovRepo := repository.NewMarkovRepository(db)
	ctx := context.Background()

	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	dur := 15.0
	later := start.Add(20 * time.Minute)
	rows := []schema.ActivityHistory{
		{ActivityID: "A", WasCompleted: true, ActualStartTime: &start, ActualDuration: &dur},
		{ActivityID: "B", WasCompleted: true, ActualStartTime: &later, ActualDuration: &dur},
	}

	analyzer := NewHistoryAnalyzer(nil, nil)
	batch, err := analyzer.MineBatch(rows)
	if err != nil {
		t.Fatalf("MineBatch error: %v", err)
	}
	if len(batch.Markov) != 1 {
		t.Fatalf("markov=%d, want 1", len(batch.Markov))
	}

	persisted, err := markovRepo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll error: %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("MineBatch must not persist, got %d rows", len(persisted))
	}
}

func TestHistoryWriterRecordCompletion(t *testing.T) {
	db := testutil.OpenTestDB(t)
	history := repository.NewHistoryRepository(db)
	states := repository.NewEmaStateRepository(db)
	behaviors := repository.NewBehaviorRepository(db)
	ctx := context.Background()

	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	miner := NewEmaMiner(EmaMinerOptions{Now: func() time.Time { return now }})
	writer := NewHistoryWriter(miner, history, states, behaviors)

	id, err := writer.RecordCompletion(ctx, RecordCompletionInput{
		ActivityID:         "a",
		PredictedStartTime: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
		PredictedDuration:  30,
		ActualStartTime:    time.Date(2024, 6, 3, 9, 5, 0, 0, time.UTC),
		ActualDuration:     25,
		TimeZone:           "UTC",
	})
	if err != nil {
		t.Fatalf("RecordCompletion error: %v", err)
	}
	if id == "" {
		t.Fatalf("empty history id")
	}

	rows, err := history.GetCompleted(ctx)
	if err != nil {
		t.Fatalf("GetCompleted error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(rows))
	}
	if rows[0].LocalDayBucket != "2024-06-03" || rows[0].BucketTimezone != "UTC" {
		t.Fatalf("row=%+v, want derived bucket keys", rows[0])
	}

	st, err := states.Get(ctx, "a", "DAILY")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if st == nil || st.OpenBucketKey != "2024-06-03" || st.OpenBucketCount != 1 {
		t.Fatalf("state=%+v, want open bucket from ingest", st)
	}
}

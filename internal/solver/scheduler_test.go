package solver

import (
	"context"
	"testing"
	"time"
)

// fakeSolver records the call and answers with pre-baked tuples.
type fakeSolver struct {
	maxGenerations int
	timeLimit      time.Duration
	payloadLen     int
	tuples         []ResultTuple
}

func (f *fakeSolver) Solve(_ context.Context, problem []byte, maxGenerations int, timeLimit time.Duration) ([]byte, error) {
	f.maxGenerations = maxGenerations
	f.timeLimit = timeLimit
	f.payloadLen = len(problem)
	return SerializeResultTuples(f.tuples), nil
}

func TestParseSolveResultDropsForeignIDs(t *testing.T) {
	horizon := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	built, err := NewProblemBuilder(nil).Build(builderInput(horizon))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	syntheticNum := built.ActivityIDToNumeric.Forward["scheduled:evt-1"]
	deepWorkNum := built.ActivityIDToNumeric.Forward["deep-work"]

	results := ParseSolveResult([]ResultTuple{
		{deepWorkNum, 36},
		{syntheticNum, 8}, // fixed events are anchors, not schedule output
		{99, 4},           // hallucinated numeric id
	}, built)

	if len(results) != 1 {
		t.Fatalf("expected a single surviving result, got %+v", results)
	}
	got := results[0]
	if got.ActivityID != "deep-work" || got.StartSlot != 36 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if want := horizon.Add(9 * time.Hour); !got.StartTime.Equal(want) {
		t.Fatalf("start time = %v, want %v", got.StartTime, want)
	}
}

func TestSchedulerAppliesDefaultBudgets(t *testing.T) {
	horizon := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	built, err := NewProblemBuilder(nil).Build(builderInput(horizon))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	deepWorkNum := built.ActivityIDToNumeric.Forward["deep-work"]
	fake := &fakeSolver{tuples: []ResultTuple{{deepWorkNum, 40}}}
	scheduler := NewScheduler(fake)

	results, err := scheduler.Solve(context.Background(), built, SolveOptions{})
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}

	if fake.maxGenerations != DefaultMaxGenerations {
		t.Fatalf("max generations = %d, want %d", fake.maxGenerations, DefaultMaxGenerations)
	}
	if fake.timeLimit != DefaultTimeLimit {
		t.Fatalf("time limit = %v, want %v", fake.timeLimit, DefaultTimeLimit)
	}
	if fake.payloadLen == 0 {
		t.Fatal("problem payload must not be empty")
	}
	if len(results) != 1 || results[0].ActivityID != "deep-work" || results[0].StartSlot != 40 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSchedulerHonorsExplicitBudgets(t *testing.T) {
	horizon := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	built, err := NewProblemBuilder(nil).Build(builderInput(horizon))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	fake := &fakeSolver{}
	scheduler := NewScheduler(fake)

	tuples, err := scheduler.SolveRaw(context.Background(), built, SolveOptions{
		MaxGenerations: 120,
		TimeLimit:      time.Second,
	})
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if len(tuples) != 0 {
		t.Fatalf("expected empty tuples, got %v", tuples)
	}
	if fake.maxGenerations != 120 || fake.timeLimit != time.Second {
		t.Fatalf("budgets not forwarded: gen=%d limit=%v", fake.maxGenerations, fake.timeLimit)
	}
}

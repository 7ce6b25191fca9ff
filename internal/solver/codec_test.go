package solver

import (
	"errors"
	"testing"
)

func TestResultTuplesRoundTrip(t *testing.T) {
	tuples := []ResultTuple{{0, 36}, {1, 96}, {2, 300}, {7, 70000}}

	decoded, err := DeserializeSolveResult(SerializeResultTuples(tuples))
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if len(decoded) != len(tuples) {
		t.Fatalf("expected %d tuples, got %d", len(tuples), len(decoded))
	}
	for i, tuple := range tuples {
		if decoded[i] != tuple {
			t.Fatalf("tuple %d: got %v, want %v", i, decoded[i], tuple)
		}
	}
}

// Large result sets cross the fixarray boundary and must still decode.
func TestResultTuplesLongArray(t *testing.T) {
	tuples := make([]ResultTuple, 300)
	for i := range tuples {
		tuples[i] = ResultTuple{i, i * 4}
	}

	decoded, err := DeserializeSolveResult(SerializeResultTuples(tuples))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != 300 {
		t.Fatalf("expected 300 tuples, got %d", len(decoded))
	}
	if decoded[299] != (ResultTuple{299, 1196}) {
		t.Fatalf("last tuple = %v", decoded[299])
	}
}

func TestDeserializeEmptyBuffer(t *testing.T) {
	decoded, err := DeserializeSolveResult(nil)
	if err != nil {
		t.Fatalf("empty buffer should decode to empty result: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty result, got %v", decoded)
	}
}

func TestDeserializeMalformedPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"not an array", []byte{0xa3, 'f', 'o', 'o'}},
		{"row too short", []byte{0x91, 0x91, 0x01}},
		{"row too long", []byte{0x91, 0x93, 0x01, 0x02, 0x03}},
		{"row not an array", []byte{0x91, 0x05}},
		{"negative value", []byte{0x91, 0x92, 0xff, 0x01}},
		{"truncated", []byte{0x92, 0x92, 0x01}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DeserializeSolveResult(tc.payload); !errors.Is(err, ErrMalformedResultTuple) {
				t.Fatalf("expected ErrMalformedResultTuple, got %v", err)
			}
		})
	}
}

// The serialized problem must start with the fixed 7-key top-level map
// and the "activities" field, matching the solver's wire contract.
func TestSerializeProblemEnvelope(t *testing.T) {
	start := 4
	problem := Problem{
		Activities: []Activity{
			{
				ID:            0,
				ActivityType:  ActivityFixed,
				DurationSlots: 2,
				Priority:      5,
				AssignedStart: &start,
				CategoryID:    1,
			},
		},
		FloatingIndices:   []int{},
		FixedIndices:      []int{0},
		GlobalConstraints: []GlobalConstraint{{ForbiddenZone: &ForbiddenZone{Start: 0, End: 32}}},
		Heatmap:           []HeatmapEntry{{Activity: 0, Slot: 36, Probability: 0.5}},
		MarkovMatrix:      []MarkovEntry{},
		TotalSlots:        672,
	}

	payload := SerializeProblem(problem)
	if len(payload) == 0 {
		t.Fatal("empty payload")
	}
	if payload[0] != 0x87 {
		t.Fatalf("top-level header = 0x%02x, want fixmap of 7 keys", payload[0])
	}
	wantKey := "\xaaactivities" // fixstr of length 10
	if string(payload[1:1+len(wantKey)]) != wantKey {
		t.Fatalf("first key mismatch: % x", payload[1:12])
	}
	// fixarray of one activity followed by its fixmap of 10 fields
	if payload[12] != 0x91 || payload[13] != 0x8a {
		t.Fatalf("activity headers = 0x%02x 0x%02x", payload[12], payload[13])
	}
}

// Serialization is schema-driven, so identical problems must produce
// identical bytes across runs.
func TestSerializeProblemDeterministic(t *testing.T) {
	problem := Problem{
		Activities: []Activity{
			{ID: 0, ActivityType: ActivityFloating, DurationSlots: 4, CategoryID: 0},
			{ID: 1, ActivityType: ActivityFloating, DurationSlots: 2, CategoryID: 1},
		},
		FloatingIndices: []int{0, 1},
		FixedIndices:    []int{},
		GlobalConstraints: []GlobalConstraint{
			{CumulativeTime: &CumulativeTime{PeriodSlots: 96, MinDuration: 4, MaxDuration: 16}},
		},
		Heatmap:      []HeatmapEntry{{Activity: 1, Slot: 40, Probability: 0.25}},
		MarkovMatrix: []MarkovEntry{{From: 0, To: 1, Probability: 0.75}},
		TotalSlots:   672,
	}

	first := SerializeProblem(problem)
	second := SerializeProblem(problem)
	if string(first) != string(second) {
		t.Fatal("serialization is not deterministic")
	}
}

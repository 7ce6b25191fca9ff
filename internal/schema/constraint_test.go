package schema

import "testing"

func TestParseValue_ForbiddenZone(t *testing.T) {
	c := Constraint{
		Type:  ConstraintGlobalForbiddenZone,
		Value: JSONMap{"startSlot": float64(8), "endSlot": float64(32)},
	}
	parsed, err := c.ParseValue()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.ForbiddenZone == nil {
		t.Fatal("expected forbidden-zone variant")
	}
	if parsed.ForbiddenZone.StartSlot != 8 || parsed.ForbiddenZone.EndSlot != 32 {
		t.Fatalf("got [%d, %d), want [8, 32)", parsed.ForbiddenZone.StartSlot, parsed.ForbiddenZone.EndSlot)
	}
}

func TestParseValue_ForbiddenZoneRejectsInvertedRange(t *testing.T) {
	c := Constraint{
		Type:  ConstraintGlobalForbiddenZone,
		Value: JSONMap{"startSlot": float64(32), "endSlot": float64(8)},
	}
	if _, err := c.ParseValue(); err == nil {
		t.Fatal("start >= end should be rejected")
	}
}

func TestParseValue_ForbiddenZoneMissingField(t *testing.T) {
	c := Constraint{
		Type:  ConstraintGlobalForbiddenZone,
		Value: JSONMap{"startSlot": float64(8)},
	}
	if _, err := c.ParseValue(); err == nil {
		t.Fatal("missing endSlot should be rejected")
	}
}

func TestParseValue_CumulativeTimeFloorsAndClamps(t *testing.T) {
	c := Constraint{
		Type: ConstraintGlobalCumulativeTime,
		Value: JSONMap{
			"periodSlots": float64(0), // clamped to 1
			"minDuration": float64(-4),
			"maxDuration": float64(12.9),
		},
	}
	parsed, err := c.ParseValue()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v := parsed.Cumulative
	if v.PeriodSlots != 1 || v.MinDuration != 0 || v.MaxDuration != 12 {
		t.Fatalf("got {%d %d %d}, want {1 0 12}", v.PeriodSlots, v.MinDuration, v.MaxDuration)
	}
}

func TestParseValue_SequenceKeepsGapBounds(t *testing.T) {
	c := Constraint{
		Type: ConstraintUserSequence,
		Value: JSONMap{
			"predecessorId": "act-a",
			"successorId":   "act-b",
			"minGapSlots":   float64(1),
		},
	}
	parsed, err := c.ParseValue()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v := parsed.Sequence
	if v.PredecessorID != "act-a" || v.SuccessorID != "act-b" {
		t.Fatalf("unexpected ids: %+v", v)
	}
	if v.MinGapSlots == nil || *v.MinGapSlots != 1 {
		t.Fatal("minGapSlots should be preserved for the unsupported-feature warning")
	}
	if v.MaxGapSlots != nil {
		t.Fatal("absent maxGapSlots should stay nil")
	}
}

func TestParseValue_FrequencyGoal(t *testing.T) {
	c := Constraint{
		Type: ConstraintUserFrequencyGoal,
		Value: JSONMap{
			"scope":    "SameWeek",
			"minCount": float64(2),
			"maxCount": float64(5),
		},
	}
	parsed, err := c.ParseValue()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v := parsed.Frequency
	if v.Scope != ScopeSameWeek || *v.MinCount != 2 || *v.MaxCount != 5 {
		t.Fatalf("unexpected parse result: %+v", v)
	}
}

func TestParseValue_FrequencyGoalRejectsBadBounds(t *testing.T) {
	cases := []JSONMap{
		{"scope": "SameDay"},                                                // no bounds at all
		{"scope": "SameDay", "minCount": float64(5), "maxCount": float64(2)}, // inverted
		{"scope": "Hourly", "minCount": float64(1)},                         // unknown scope
	}
	for i, value := range cases {
		c := Constraint{Type: ConstraintUserFrequencyGoal, Value: value}
		if _, err := c.ParseValue(); err == nil {
			t.Errorf("case %d should be rejected: %v", i, value)
		}
	}
}

func TestSortPair(t *testing.T) {
	a, b := SortPair("zeta", "alpha")
	if a != "alpha" || b != "zeta" {
		t.Fatalf("SortPair gave (%s, %s)", a, b)
	}
	a, b = SortPair("alpha", "zeta")
	if a != "alpha" || b != "zeta" {
		t.Fatalf("SortPair should be stable for ordered input, gave (%s, %s)", a, b)
	}
}

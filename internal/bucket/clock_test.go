package bucket

import (
	"testing"
	"time"
)

func TestDeriveKeys_UTC(t *testing.T) {
	// 2024-01-03 is a Wednesday; its local Monday is 2024-01-01.
	at := time.Date(2024, 1, 3, 10, 30, 0, 0, time.UTC)
	keys := DeriveKeys(at, "UTC")

	if keys.Day != "2024-01-03" {
		t.Errorf("day bucket = %s, want 2024-01-03", keys.Day)
	}
	if keys.Week != "2024-01-01" {
		t.Errorf("week bucket = %s, want 2024-01-01", keys.Week)
	}
	if keys.Month != "2024-01" {
		t.Errorf("month bucket = %s, want 2024-01", keys.Month)
	}
	if keys.TimeZone != "UTC" {
		t.Errorf("timezone = %s, want UTC", keys.TimeZone)
	}
}

func TestDeriveKeys_TimezoneShiftsDay(t *testing.T) {
	// 2024-06-01 02:00 UTC is still 2024-05-31 in New York.
	at := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	keys := DeriveKeys(at, "America/New_York")

	if keys.Day != "2024-05-31" {
		t.Errorf("day bucket = %s, want 2024-05-31", keys.Day)
	}
	if keys.Month != "2024-05" {
		t.Errorf("month bucket = %s, want 2024-05", keys.Month)
	}
}

func TestDeriveKeys_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	at := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	keys := DeriveKeys(at, "Not/AZone")
	if keys.TimeZone != "UTC" {
		t.Fatalf("invalid zone should fall back to UTC, got %s", keys.TimeZone)
	}
	if keys.Day != "2024-06-01" {
		t.Fatalf("day bucket = %s, want 2024-06-01", keys.Day)
	}
}

func TestDeriveKeys_SundayBelongsToPreviousMonday(t *testing.T) {
	// 2024-01-07 is a Sunday; week bucket stays at 2024-01-01.
	at := time.Date(2024, 1, 7, 23, 0, 0, 0, time.UTC)
	keys := DeriveKeys(at, "UTC")
	if keys.Week != "2024-01-01" {
		t.Fatalf("week bucket = %s, want 2024-01-01", keys.Week)
	}
}

func TestNext(t *testing.T) {
	cases := []struct {
		scope Scope
		key   string
		want  string
	}{
		{ScopeDaily, "2024-01-31", "2024-02-01"},  // month roll-over
		{ScopeDaily, "2024-02-28", "2024-02-29"},  // leap year
		{ScopeDaily, "2024-12-31", "2025-01-01"},  // year roll-over
		{ScopeWeekly, "2024-01-29", "2024-02-05"}, // Monday + 7d
		{ScopeMonthly, "2024-12", "2025-01"},
		{ScopeMonthly, "2024-01", "2024-02"},
	}

	for _, tc := range cases {
		got, err := Next(tc.scope, tc.key)
		if err != nil {
			t.Errorf("Next(%s, %s): %v", tc.scope, tc.key, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Next(%s, %s) = %s, want %s", tc.scope, tc.key, got, tc.want)
		}
	}
}

func TestCompare(t *testing.T) {
	if cmp, _ := Compare(ScopeDaily, "2024-01-01", "2024-01-02"); cmp >= 0 {
		t.Errorf("expected 2024-01-01 < 2024-01-02, got %d", cmp)
	}
	if cmp, _ := Compare(ScopeMonthly, "2024-02", "2024-02"); cmp != 0 {
		t.Errorf("expected equal month keys, got %d", cmp)
	}
	if cmp, _ := Compare(ScopeMonthly, "2025-01", "2024-12"); cmp != 1 {
		t.Errorf("expected adjacent months to differ by 1, got %d", cmp)
	}
}

func TestCompare_InvalidKey(t *testing.T) {
	if _, err := Compare(ScopeDaily, "garbage", "2024-01-01"); err == nil {
		t.Fatal("invalid bucket key should error")
	}
}

func TestIndex_WeekKeysAreSevenDaysApart(t *testing.T) {
	a, err := Index(ScopeWeekly, "2024-01-01")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Index(ScopeWeekly, "2024-01-08")
	if err != nil {
		t.Fatal(err)
	}
	if b-a != 7 {
		t.Fatalf("adjacent week indices differ by %d, want 7", b-a)
	}
}

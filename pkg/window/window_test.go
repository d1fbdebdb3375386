package window

import (
	"testing"
	"time"
)

func date(hhmm string) time.Time {
	d, err := CombineDateTime(time.Date(2025, 10, 26, 0, 0, 0, 0, time.UTC), hhmm)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCombineDateTime(t *testing.T) {
	got := date("14:30")
	want := time.Date(2025, 10, 26, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("CombineDateTime = %v, want %v", got, want)
	}
}

func TestCombineDateTime_IgnoresDateClock(t *testing.T) {
	// A date carrying its own clock component must not leak into the result.
	noisy := time.Date(2025, 10, 26, 23, 59, 58, 0, time.UTC)
	got, err := CombineDateTime(noisy, "08:15")
	if err != nil {
		t.Fatalf("CombineDateTime: %v", err)
	}
	want := time.Date(2025, 10, 26, 8, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("CombineDateTime = %v, want %v", got, want)
	}
}

func TestCombineDateTime_Invalid(t *testing.T) {
	for _, bad := range []string{"", "25:00", "12:61", "noon", "12.30"} {
		if _, err := CombineDateTime(time.Now(), bad); err == nil {
			t.Errorf("CombineDateTime(%q): expected error", bad)
		}
	}
}

func TestContains_Inclusive(t *testing.T) {
	from := date("08:00")
	to := date("18:00")

	cases := []struct {
		at   time.Time
		want bool
	}{
		{date("08:00"), true}, // lower bound inclusive
		{date("18:00"), true}, // upper bound inclusive
		{date("12:00"), true},
		{date("07:59"), false},
		{date("18:01"), false},
	}
	for _, tc := range cases {
		if got := Contains(from, to, tc.at); got != tc.want {
			t.Errorf("Contains(08:00, 18:00, %s) = %v, want %v", tc.at.Format("15:04"), got, tc.want)
		}
	}
}

func TestWithinBuffer(t *testing.T) {
	buffer := 2 * time.Hour
	cases := []struct {
		a, b time.Time
		want bool
	}{
		{date("14:00"), date("15:00"), true},  // 1h apart: conflict
		{date("14:00"), date("15:59"), true},  // 1h59 apart: conflict
		{date("14:00"), date("16:00"), false}, // exactly 2h apart: allowed
		{date("14:00"), date("16:01"), false},
		{date("14:00"), date("14:00"), true}, // same instant
		{date("16:00"), date("14:00"), false}, // symmetric
		{date("15:00"), date("14:00"), true},
	}
	for _, tc := range cases {
		if got := WithinBuffer(tc.a, tc.b, buffer); got != tc.want {
			t.Errorf("WithinBuffer(%s, %s) = %v, want %v",
				tc.a.Format("15:04"), tc.b.Format("15:04"), got, tc.want)
		}
	}
}

func TestLocationsOverlap(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Haifa", "Haifa", true},
		{"Haifa", "Haifa Port", true}, // substring, either direction
		{"Haifa Port", "Haifa", true},
		{"Haifa", "Tel Aviv", false},
		{"haifa", "Haifa", false}, // case-sensitive
		{"  Haifa  ", "Haifa", true},
		{"", "Haifa", false},
		{"", "", false},
		{"   ", "Haifa", false},
	}
	for _, tc := range cases {
		if got := LocationsOverlap(tc.a, tc.b); got != tc.want {
			t.Errorf("LocationsOverlap(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

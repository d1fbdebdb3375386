// Package window provides time-window and location-label predicates for
// trip brokering.
//
// Location matching is a deliberate fuzzy heuristic: two free-text labels
// overlap when either contains the other, case-sensitively. This tolerates
// entries like "Haifa" vs "Haifa Port" at the cost of occasional false
// positives; callers must treat matcher output as advisory.
package window

import (
	"fmt"
	"strings"
	"time"
)

// ─── Departure instant ──────────────────────────────────────

// CombineDateTime combines a calendar date with an "HH:MM" departure time
// into a single UTC instant. The date's own clock component is ignored.
func CombineDateTime(date time.Time, hhmm string) (time.Time, error) {
	clock, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, fmt.Errorf("window: parse departure time %q: %w", hhmm, err)
	}
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), 0, 0, time.UTC,
	), nil
}

// ─── Predicates ─────────────────────────────────────────────

// Contains reports whether at falls within [from, to], bounds inclusive.
func Contains(from, to, at time.Time) bool {
	return !at.Before(from) && !at.After(to)
}

// WithinBuffer reports whether two departure instants are closer together
// than the given buffer. Instants exactly buffer apart are NOT within it:
// |a−b| ≥ buffer means no conflict.
func WithinBuffer(a, b time.Time, buffer time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < buffer
}

// LocationsOverlap reports whether two free-text location labels match
// under the bidirectional substring rule. Empty labels never match.
func LocationsOverlap(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

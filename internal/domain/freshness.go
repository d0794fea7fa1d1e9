package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultFreshnessWindow is the elapsed-time window applied when none is configured.
const DefaultFreshnessWindow = 72 * time.Hour

// FreshnessPolicy selects how recency is judged.
type FreshnessPolicy string

const (
	// PolicyElapsed keeps records whose age is within the window.
	PolicyElapsed FreshnessPolicy = "elapsed"
	// PolicyCalendar keeps records dated today or yesterday.
	PolicyCalendar FreshnessPolicy = "calendar"
)

// ParseFreshnessPolicy validates a policy name.
func ParseFreshnessPolicy(s string) (FreshnessPolicy, error) {
	switch p := FreshnessPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyElapsed, PolicyCalendar:
		return p, nil
	default:
		return "", fmt.Errorf("unknown freshness policy %q", s)
	}
}

// ErrUnparseableTimestamp is returned by ParseTimestamp for values it cannot read.
var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp reads an ISO-8601 timestamp. A trailing "Z" is read as UTC.
// Values without an offset are interpreted in loc (UTC when nil).
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnparseableTimestamp
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, s)
}

// IsWithinWindow reports whether timestamp lies in [now-window, now], reading
// timestamps without an offset as UTC. Unparseable and future timestamps are
// never within the window. A non-positive window means DefaultFreshnessWindow.
func IsWithinWindow(timestamp string, now time.Time, window time.Duration) bool {
	return Freshness{Policy: PolicyElapsed, Window: window, Location: time.UTC}.Fresh(timestamp, now)
}

func withinElapsed(t, now time.Time, window time.Duration) bool {
	age := now.Sub(t)
	return age >= 0 && age <= window
}

// Freshness applies the configured recency policy.
type Freshness struct {
	Policy   FreshnessPolicy
	Window   time.Duration
	Location *time.Location
}

// DefaultFreshness is the elapsed 72h policy in UTC.
func DefaultFreshness() Freshness {
	return Freshness{Policy: PolicyElapsed, Window: DefaultFreshnessWindow, Location: time.UTC}
}

// Fresh reports whether a harvested timestamp is recent relative to now.
func (f Freshness) Fresh(timestamp string, now time.Time) bool {
	loc := f.location()
	t, err := ParseTimestamp(timestamp, loc)
	if err != nil {
		return false
	}
	if f.Policy == PolicyCalendar {
		if t.After(now) {
			return false
		}
		day := civilDate(t.In(loc))
		today := civilDate(now.In(loc))
		return day.Equal(today) || day.Equal(today.AddDate(0, 0, -1))
	}
	window := f.Window
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return withinElapsed(t, now, window)
}

// Filter returns the records whose timestamps are fresh relative to now.
func (f Freshness) Filter(records []RawRecord, now time.Time) []RawRecord {
	out := make([]RawRecord, 0, len(records))
	for _, r := range records {
		if f.Fresh(r.Timestamp, now) {
			out = append(out, r)
		}
	}
	return out
}

func (f Freshness) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

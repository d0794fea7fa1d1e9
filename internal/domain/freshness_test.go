package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func TestParseTimestamp(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)

	tests := []struct {
		name string
		in   string
		loc  *time.Location
		want time.Time
	}{
		{"zulu suffix", "2025-01-10T10:00:00Z", nil, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)},
		{"zulu with millis", "2025-01-10T10:00:00.000Z", nil, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)},
		{"explicit offset", "2025-01-10T05:00:00-05:00", nil, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)},
		{"naive in UTC", "2025-01-10T10:00:00", nil, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)},
		{"naive in location", "2025-01-10T05:00:00", est, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)},
		{"space separator", "2025-01-10 10:00:00", nil, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)},
		{"date only", "2025-01-10", nil, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in, tt.loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "10/01/2025", "2025-13-45T99:00:00Z"} {
		_, err := ParseTimestamp(in, nil)
		require.ErrorIs(t, err, ErrUnparseableTimestamp, in)
	}
}

func TestIsWithinWindow(t *testing.T) {
	window := 72 * time.Hour

	tests := []struct {
		name string
		ts   string
		want bool
	}{
		{"two hours old", testNow.Add(-2 * time.Hour).Format(time.RFC3339), true},
		{"exactly at boundary", testNow.Add(-window).Format(time.RFC3339), true},
		{"one second past boundary", testNow.Add(-window - time.Second).Format(time.RFC3339), false},
		{"ten days old", testNow.Add(-240 * time.Hour).Format(time.RFC3339), false},
		{"exactly now", testNow.Format(time.RFC3339), true},
		{"future", testNow.Add(time.Minute).Format(time.RFC3339), false},
		{"unparseable", "not a date", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWithinWindow(tt.ts, testNow, window))
		})
	}
}

func TestIsWithinWindow_MatchesPipelineFilter(t *testing.T) {
	window := 24 * time.Hour
	f := Freshness{Policy: PolicyElapsed, Window: window, Location: time.UTC}
	records := []RawRecord{
		{Author: "a", Timestamp: testNow.Add(-time.Hour).Format(time.RFC3339)},
		{Author: "b", Timestamp: testNow.Add(-window).Format(time.RFC3339)},
		{Author: "c", Timestamp: testNow.Add(-window - time.Second).Format(time.RFC3339)},
		{Author: "d", Timestamp: "2025-01-10T06:00:00"},
		{Author: "e", Timestamp: testNow.Add(time.Second).Format(time.RFC3339)},
	}

	var want []string
	for _, r := range records {
		if IsWithinWindow(r.Timestamp, testNow, window) {
			want = append(want, r.Author)
		}
	}
	var got []string
	for _, r := range f.Filter(records, testNow) {
		got = append(got, r.Author)
	}
	assert.Equal(t, []string{"a", "b", "d"}, want)
	assert.Equal(t, want, got)

	assert.True(t, IsWithinWindow(testNow.Add(-71*time.Hour).Format(time.RFC3339), testNow, 0), "default window")
}

func TestFreshness_Calendar(t *testing.T) {
	f := Freshness{Policy: PolicyCalendar, Location: time.UTC}

	assert.True(t, f.Fresh("2025-01-10T00:00:01Z", testNow), "today")
	assert.True(t, f.Fresh("2025-01-09T00:00:00Z", testNow), "start of yesterday")
	assert.False(t, f.Fresh("2025-01-08T23:59:59Z", testNow), "day before yesterday")
	assert.False(t, f.Fresh("2025-01-10T12:00:01Z", testNow), "future today")
	assert.False(t, f.Fresh("garbage", testNow))
}

func TestFreshness_CalendarUsesLocation(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	f := Freshness{Policy: PolicyCalendar, Location: est}

	// 03:00 UTC on the 9th is the evening of the 8th in EST, two days before
	// the 10th in EST.
	assert.False(t, f.Fresh("2025-01-09T03:00:00Z", testNow))
	assert.True(t, f.Fresh("2025-01-09T06:00:00Z", testNow))
}

func TestFreshness_ElapsedDefaultsWindow(t *testing.T) {
	f := Freshness{Policy: PolicyElapsed}
	assert.True(t, f.Fresh(testNow.Add(-71*time.Hour).Format(time.RFC3339), testNow))
	assert.False(t, f.Fresh(testNow.Add(-73*time.Hour).Format(time.RFC3339), testNow))
}

func TestFreshness_Filter(t *testing.T) {
	f := DefaultFreshness()
	records := []RawRecord{
		{Author: "a", Content: "fresh", Timestamp: testNow.Add(-time.Hour).Format(time.RFC3339)},
		{Author: "b", Content: "stale", Timestamp: testNow.Add(-240 * time.Hour).Format(time.RFC3339)},
		{Author: "c", Content: "broken", Timestamp: "???"},
	}

	got := f.Filter(records, testNow)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Author)
}

func TestParseFreshnessPolicy(t *testing.T) {
	p, err := ParseFreshnessPolicy(" Calendar ")
	require.NoError(t, err)
	assert.Equal(t, PolicyCalendar, p)

	_, err = ParseFreshnessPolicy("weekly")
	require.Error(t, err)
}

package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons", discardLogger())
	require.Error(t, err)
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s, err := New("UTC", discardLogger())
	require.NoError(t, err)

	err = s.AddJob("run", "not a schedule", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestAddJob_DuplicateName(t *testing.T) {
	s, err := New("", discardLogger())
	require.NoError(t, err)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddJob("run", "@every 1h", noop))
	require.Error(t, s.AddJob("run", "@every 2h", noop))
}

func TestJobs_ListsScheduleAndNextRun(t *testing.T) {
	s, err := New("America/Chicago", discardLogger())
	require.NoError(t, err)
	require.NoError(t, s.AddJob("run", "0 */6 * * *", func(context.Context) error { return nil }))

	s.Start()
	defer s.Stop()

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "run", jobs[0].Name)
	assert.Equal(t, "0 */6 * * *", jobs[0].Spec)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestRunNow_AppliesTimeout(t *testing.T) {
	s, err := New("UTC", discardLogger())
	require.NoError(t, err)
	s.SetJobTimeout(20 * time.Millisecond)

	err = s.RunNow("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunNow_PropagatesError(t *testing.T) {
	s, err := New("UTC", discardLogger())
	require.NoError(t, err)

	boom := errors.New("boom")
	require.ErrorIs(t, s.RunNow("run", func(context.Context) error { return boom }), boom)
}

func TestScheduler_RunsJob(t *testing.T) {
	s, err := New("UTC", discardLogger())
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.AddJob("run", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}

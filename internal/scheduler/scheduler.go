// Package scheduler runs pipeline jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single scheduled run.
const DefaultJobTimeout = 30 * time.Minute

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string    `json:"name"`
	Spec    string    `json:"schedule"`
	NextRun time.Time `json:"next_run"`
	LastRun time.Time `json:"last_run,omitzero"`
}

// Scheduler wraps a cron runner. Overlapping invocations of the same job are
// skipped rather than queued.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
	jobs    map[string]entry
}

type entry struct {
	id   cron.EntryID
	spec string
}

// New creates a scheduler evaluating schedules in timezone (IANA name; empty means UTC).
func New(timezone string, logger *slog.Logger) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
		}
	}
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{
		cron:    c,
		logger:  logger,
		timeout: DefaultJobTimeout,
		jobs:    make(map[string]entry),
	}, nil
}

// SetJobTimeout overrides the per-run timeout.
func (s *Scheduler) SetJobTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// AddJob registers job under name. schedule is a standard five-field cron
// expression or a descriptor such as "@every 1h".
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	id, err := s.cron.AddFunc(schedule, func() {
		if err := s.RunNow(name, job); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.jobs[name] = entry{id: id, spec: schedule}
	s.logger.Info("job scheduled", "job", name, "schedule", schedule)
	return nil
}

// RunNow executes job synchronously with the scheduler's timeout.
func (s *Scheduler) RunNow(name string, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info("job starting", "job", name)
	start := time.Now()
	if err := job(ctx); err != nil {
		return err
	}
	s.logger.Info("job completed", "job", name, "duration", time.Since(start))
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler starting", "jobs", len(s.jobs))
	s.cron.Start()
}

// Stop halts scheduling. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")
	return s.cron.Stop()
}

// Jobs lists registered jobs with their next and previous fire times.
func (s *Scheduler) Jobs() []JobInfo {
	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		for _, ce := range entries {
			if ce.ID == e.id {
				infos = append(infos, JobInfo{Name: name, Spec: e.spec, NextRun: ce.Next, LastRun: ce.Prev})
				break
			}
		}
	}
	return infos
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

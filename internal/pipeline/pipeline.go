package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/couchcryptid/fire-incident-pipeline/internal/notify"
	"github.com/couchcryptid/fire-incident-pipeline/internal/observability"
	"github.com/couchcryptid/fire-incident-pipeline/internal/store"
	"github.com/oklog/ulid/v2"
)

// notifyTimeout bounds delivery when the run context was already cancelled.
const notifyTimeout = 2 * time.Minute

// Classifier judges a single post.
type Classifier interface {
	ClassifyIncident(ctx context.Context, content, url string) domain.Verdict
	ScoreRelevance(ctx context.Context, content string) domain.Score
}

// ReportWriter appends verified rows to the tabular report.
type ReportWriter interface {
	Append(recs ...domain.VerifiedRecord) error
	Keys() (map[domain.Key]struct{}, error)
	Path() string
}

// ErrIngest marks a run whose incoming batch could not be stored. The batch
// must not be acknowledged to its source.
var ErrIngest = errors.New("ingest failed")

// Locker guards the stores against concurrent runs.
type Locker interface {
	Acquire() error
	Release() error
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Raw          store.RawStore
	Verified     store.VerifiedStore
	VerifiedPath string // attached to notifications
	Report       ReportWriter
	Classifier   Classifier
	Notifier     notify.Notifier
	Lock         Locker
	Freshness    domain.Freshness
	Relevance    *domain.RelevanceFilter
}

// Pipeline runs one ingest-filter-classify-persist-notify pass per call to Run.
type Pipeline struct {
	deps    Deps
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu   sync.Mutex
	last *RunSummary
}

// New creates a Pipeline with the given collaborators and observability.
func New(deps Deps, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Pipeline{deps: deps, logger: logger, metrics: metrics}
}

// CheckReadiness returns nil once a run has completed without error.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastSummary returns the summary of the most recent run, if any.
func (p *Pipeline) LastSummary() (RunSummary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return RunSummary{}, false
	}
	return *p.last, true
}

// Run ingests incoming into the raw store and verifies every fresh, relevant,
// not-yet-verified record in the store. Per-item failures are logged and do
// not stop the run. A notification is sent at most once, and only when rows
// were verified during this run. It returns store.ErrRunInProgress without
// touching any store if another run holds the lock.
func (p *Pipeline) Run(ctx context.Context, incoming []domain.RawRecord) (RunSummary, error) {
	start := time.Now()
	sum := RunSummary{RunID: ulid.Make().String(), StartedAt: start.UTC(), Stage: StageInit, Harvested: len(incoming)}
	logger := p.logger.With("run_id", sum.RunID)

	if err := p.deps.Lock.Acquire(); err != nil {
		if errors.Is(err, store.ErrRunInProgress) {
			p.metrics.Runs.WithLabelValues("skipped").Inc()
			logger.Warn("run skipped, another run holds the lock")
		} else {
			p.metrics.Runs.WithLabelValues("error").Inc()
		}
		return sum, err
	}
	defer func() {
		if err := p.deps.Lock.Release(); err != nil {
			logger.Warn("release run lock failed", "error", err)
		}
	}()

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	err := p.run(ctx, logger, &sum, incoming)

	sum.FinishedAt = time.Now().UTC()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		sum.Error = err.Error()
		p.metrics.Runs.WithLabelValues("error").Inc()
		logger.Error("run failed", "stage", sum.Stage, "error", err)
	} else {
		p.metrics.Runs.WithLabelValues("success").Inc()
		p.ready.Store(true)
		logger.Info("run complete", sum.LogAttrs()...)
	}

	p.mu.Lock()
	last := sum
	p.last = &last
	p.mu.Unlock()

	return sum, err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, sum *RunSummary, incoming []domain.RawRecord) error {
	if err := p.ingest(ctx, sum, incoming); err != nil {
		return fmt.Errorf("%w: %w", ErrIngest, err)
	}
	all, err := p.deps.Raw.All(ctx)
	if err != nil {
		return fmt.Errorf("load raw records: %w", err)
	}
	sum.Stored = len(all)

	done, err := p.deps.Verified.All(ctx)
	if err != nil {
		return fmt.Errorf("load verified records: %w", err)
	}
	p.reconcile(logger, sum, done)

	sum.Stage = StageFilterFresh
	fresh := p.deps.Freshness.Filter(all, domain.Now())
	sum.Fresh = len(fresh)
	p.metrics.RecordsDropped.WithLabelValues("fresh").Add(float64(len(all) - len(fresh)))

	sum.Stage = StageFilterRelevant
	relevant := p.deps.Relevance.Filter(fresh)
	sum.Relevant = len(relevant)
	p.metrics.RecordsDropped.WithLabelValues("relevant").Add(float64(len(fresh) - len(relevant)))

	candidates := unverified(relevant, done)
	sum.AlreadyVerified = len(relevant) - len(candidates)
	p.metrics.RecordsDropped.WithLabelValues("already_verified").Add(float64(sum.AlreadyVerified))
	sum.Candidates = len(candidates)

	if len(candidates) == 0 {
		sum.Stage = StageDone
		logger.Info("no new relevant records, nothing to classify", "stored", sum.Stored, "fresh", sum.Fresh)
		return nil
	}

	sum.Stage = StageClassify
	var newly []domain.VerifiedRecord
	for _, raw := range candidates {
		if ctx.Err() != nil {
			logger.Warn("run cancelled, skipping remaining candidates", "remaining", len(candidates)-sum.Classified)
			break
		}
		sum.Classified++
		verdict := p.deps.Classifier.ClassifyIncident(ctx, raw.Content, raw.SourceURL)
		if verdict != domain.VerdictYes {
			sum.Rejected++
			continue
		}
		score := p.deps.Classifier.ScoreRelevance(ctx, raw.Content)

		sum.Stage = StagePersist
		rec := domain.NewVerifiedRecord(raw, verdict, score)
		if p.persist(ctx, logger, sum, rec) {
			newly = append(newly, rec)
		}
		sum.Stage = StageClassify
	}
	sum.Verified = len(newly)

	if len(newly) == 0 {
		sum.Stage = StageDone
		logger.Info("no incidents verified this run", "classified", sum.Classified)
		return nil
	}

	sum.Stage = StageNotify
	if err := p.notify(ctx, newly); err != nil {
		p.metrics.Notifications.WithLabelValues("error").Inc()
		return fmt.Errorf("notify: %w", err)
	}
	p.metrics.Notifications.WithLabelValues("success").Inc()
	sum.Notified = true
	sum.Stage = StageDone
	return nil
}

// ingest stores incoming in one write. Duplicates are counted, not errors.
// On failure nothing from incoming is stored.
func (p *Pipeline) ingest(ctx context.Context, sum *RunSummary, incoming []domain.RawRecord) error {
	if len(incoming) == 0 {
		return nil
	}
	added, err := p.deps.Raw.AppendMany(ctx, incoming)
	if err != nil {
		return err
	}
	sum.Ingested = added
	sum.Duplicates = len(incoming) - added
	p.metrics.RecordsIngested.Add(float64(sum.Ingested))
	p.metrics.RecordsDuplicate.Add(float64(sum.Duplicates))
	return nil
}

// reconcile appends to the report any verified record it is missing, such as
// rows whose report write failed in an earlier run. Reconciled rows are not
// notified again.
func (p *Pipeline) reconcile(logger *slog.Logger, sum *RunSummary, done []domain.VerifiedRecord) {
	if len(done) == 0 {
		return
	}
	have, err := p.deps.Report.Keys()
	if err != nil {
		sum.PersistErrors++
		p.metrics.PersistErrors.WithLabelValues("report").Inc()
		logger.Warn("read report failed, skipping reconciliation", "error", err)
		return
	}
	var missing []domain.VerifiedRecord
	for _, v := range done {
		if _, ok := have[v.Key()]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) == 0 {
		return
	}
	if err := p.deps.Report.Append(missing...); err != nil {
		sum.PersistErrors++
		p.metrics.PersistErrors.WithLabelValues("report").Inc()
		logger.Warn("report reconciliation failed", "missing", len(missing), "error", err)
		return
	}
	sum.Reconciled = len(missing)
	logger.Info("report reconciled with verified store", "rows", len(missing))
}

// unverified drops records already present in done.
func unverified(records []domain.RawRecord, done []domain.VerifiedRecord) []domain.RawRecord {
	seen := make(map[domain.Key]struct{}, len(done))
	for _, v := range done {
		seen[v.Key()] = struct{}{}
	}
	out := make([]domain.RawRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.Key()]; !ok {
			out = append(out, r)
		}
	}
	return out
}

// persist writes rec to the verified store, then to the report. It reports
// whether rec is newly verified.
func (p *Pipeline) persist(ctx context.Context, logger *slog.Logger, sum *RunSummary, rec domain.VerifiedRecord) bool {
	added, err := p.deps.Verified.Append(ctx, rec)
	if err != nil {
		sum.PersistErrors++
		p.metrics.PersistErrors.WithLabelValues("json").Inc()
		logger.Warn("verified store write failed, skipping record", "key", rec.Key().String(), "error", err)
		return false
	}
	if !added {
		return false
	}
	p.metrics.RecordsVerified.Inc()

	if err := p.deps.Report.Append(rec); err != nil {
		sum.PersistErrors++
		p.metrics.PersistErrors.WithLabelValues("report").Inc()
		logger.Warn("report append failed", "key", rec.Key().String(), "error", err)
	}
	logger.Info("incident verified", "source", rec.Source, "url", rec.URL, "score", rec.FireRelatedScore.String())
	return true
}

func (p *Pipeline) notify(ctx context.Context, records []domain.VerifiedRecord) error {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
	}
	return p.deps.Notifier.Notify(ctx, notify.New(records, p.deps.Report.Path(), p.deps.VerifiedPath))
}

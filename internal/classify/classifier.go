// Package classify asks an external language model whether a post describes a
// US structural fire and how strongly it relates to one.
package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/couchcryptid/fire-incident-pipeline/internal/observability"
	"golang.org/x/time/rate"
)

// Request is one deterministic system+user completion.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Completer returns the model's text answer to a request. Implementations wrap
// retryable failures with ErrTransient and must not retry on their own.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Options tunes a Classifier.
type Options struct {
	Retry            RetryPolicy
	RatePerSecond    float64
	Burst            int
	IncidentMaxChars int
	ScoreMaxChars    int
}

// Classifier wraps a Completer with truncation, rate limiting and retries.
// Failures never surface as errors: a failed verdict is "no" and a failed
// score is an empty raw score.
type Classifier struct {
	completer Completer
	retry     RetryPolicy
	limiter   *rate.Limiter
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New builds a Classifier. A non-positive RatePerSecond disables limiting.
func New(c Completer, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Classifier {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	if opts.IncidentMaxChars <= 0 {
		opts.IncidentMaxChars = 4000
	}
	if opts.ScoreMaxChars <= 0 {
		opts.ScoreMaxChars = 2000
	}
	return &Classifier{
		completer: c,
		retry:     opts.Retry,
		limiter:   rate.NewLimiter(limit, burst),
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// ClassifyIncident returns VerdictYes only when the model's answer starts with "yes".
func (c *Classifier) ClassifyIncident(ctx context.Context, content, url string) domain.Verdict {
	answer, err := c.complete(ctx, "incident", IncidentRequest(content, url, c.opts.IncidentMaxChars))
	if err != nil {
		c.logger.Warn("incident classification failed, treating as no", "url", url, "error", err)
		c.metrics.Classifications.WithLabelValues("incident", "error").Inc()
		return domain.VerdictNo
	}
	v := domain.ParseVerdict(answer)
	c.metrics.Classifications.WithLabelValues("incident", string(v)).Inc()
	c.logger.Debug("incident classified", "url", url, "verdict", v, "answer", answer)
	return v
}

// ScoreRelevance returns the 0-10 score, the raw answer when it holds no
// in-range integer, or an empty raw score on failure.
func (c *Classifier) ScoreRelevance(ctx context.Context, content string) domain.Score {
	answer, err := c.complete(ctx, "score", ScoreRequest(content, c.opts.ScoreMaxChars))
	if err != nil {
		c.logger.Warn("relevance scoring failed, leaving score empty", "error", err)
		c.metrics.Classifications.WithLabelValues("score", "error").Inc()
		return domain.RawScore("")
	}
	s := ParseScore(answer)
	outcome := "scored"
	if !s.Valid {
		outcome = "raw"
	}
	c.metrics.Classifications.WithLabelValues("score", outcome).Inc()
	return s
}

func (c *Classifier) complete(ctx context.Context, op string, req Request) (string, error) {
	start := time.Now()
	defer func() {
		c.metrics.ClassifierLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var answer string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		out, err := c.completer.Complete(ctx, req)
		if err != nil {
			return err
		}
		answer = out
		return nil
	}, func(err error, wait time.Duration) {
		c.metrics.ClassifierRetries.Inc()
		c.logger.Info("retrying classifier call", "op", op, "wait", wait, "error", err)
	})
	return answer, err
}

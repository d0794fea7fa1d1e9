package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
	"github.com/couchcryptid/fire-incident-pipeline/internal/store"
)

// Stage names the step a run reached.
type Stage string

const (
	StageInit           Stage = "INIT"
	StageFilterFresh    Stage = "FILTER_FRESH"
	StageFilterRelevant Stage = "FILTER_RELEVANT"
	StageClassify       Stage = "CLASSIFY"
	StagePersist        Stage = "PERSIST"
	StageNotify         Stage = "NOTIFY"
	StageDone           Stage = "DONE"
)

// RunSummary is the outcome of one Run.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	Stage           Stage     `json:"stage"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Harvested       int       `json:"harvested"`
	Ingested        int       `json:"ingested"`
	Duplicates      int       `json:"duplicates"`
	Stored          int       `json:"stored"`
	Fresh           int       `json:"fresh"`
	Relevant        int       `json:"relevant"`
	AlreadyVerified int       `json:"already_verified"`
	Candidates      int       `json:"candidates"`
	Classified      int       `json:"classified"`
	Rejected        int       `json:"rejected"`
	Verified        int       `json:"verified"`
	PersistErrors   int       `json:"persist_errors"`
	Reconciled      int       `json:"reconciled"`
	Notified        bool      `json:"notified"`
	Error           string    `json:"error,omitempty"`
}

// LogAttrs flattens the counters for structured logging.
func (s RunSummary) LogAttrs() []any {
	return []any{
		"harvested", s.Harvested,
		"ingested", s.Ingested,
		"duplicates", s.Duplicates,
		"stored", s.Stored,
		"fresh", s.Fresh,
		"relevant", s.Relevant,
		"candidates", s.Candidates,
		"classified", s.Classified,
		"verified", s.Verified,
		"persist_errors", s.PersistErrors,
		"reconciled", s.Reconciled,
		"notified", s.Notified,
		"duration", s.FinishedAt.Sub(s.StartedAt),
	}
}

// Source yields harvested posts in batches and acknowledges them once ingested.
type Source interface {
	ReadBatch(ctx context.Context) ([]domain.RawRecord, error)
	Commit(ctx context.Context) error
}

// Job returns a scheduler-friendly function that reads one batch from src and
// runs the pipeline over it. The batch is committed once it is stored, so it
// stays with the source when the run was skipped because another run held the
// lock or when ingest failed.
func (p *Pipeline) Job(src Source) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		batch, err := src.ReadBatch(ctx)
		if err != nil {
			return fmt.Errorf("read harvested batch: %w", err)
		}
		sum, runErr := p.Run(ctx, batch)
		if errors.Is(runErr, store.ErrRunInProgress) || errors.Is(runErr, ErrIngest) {
			return runErr
		}
		if err := src.Commit(ctx); err != nil {
			return errors.Join(runErr, fmt.Errorf("commit batch of %d: %w", sum.Harvested, err))
		}
		return runErr
	}
}

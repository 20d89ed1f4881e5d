// Package pipeline drives tracks through the stage DAG: each Step claims
// its eligible tracks, calls providers and persists the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/logger"
	"github.com/cesargomez89/songpipe/internal/store"
)

// Result is what a successful Work call hands back for persistence.
type Result struct {
	Next    domain.Stage
	Payload *domain.Payload
}

// Step is one edge of the DAG. Eligible is the stage precondition; Ready is
// an optional finer check on the claimed row returning why it cannot run
// yet, or "" when it can. Work performs the attempt.
type Step struct {
	Name     string
	Eligible store.Eligibility
	Ready    func(t *domain.Track) string
	Work     func(ctx context.Context, t *domain.Track) (*Result, error)
	Limiter  *rate.Limiter
}

type StepSummary struct {
	Step      string `json:"step"`
	Claimed   int    `json:"claimed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Processor runs steps against the store on behalf of one lease owner.
type Processor struct {
	db       *store.DB
	owner    string
	leaseTTL time.Duration
	logger   *logger.Logger
}

func NewProcessor(db *store.DB, owner string, leaseTTL time.Duration, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Default()
	}
	if leaseTTL <= 0 {
		leaseTTL = constants.DefaultLeaseTTL
	}
	return &Processor{
		db:       db,
		owner:    owner,
		leaseTTL: leaseTTL,
		logger:   log.WithComponent("processor"),
	}
}

func (p *Processor) Owner() string {
	return p.owner
}

// Run claims up to limit tracks for step and processes them one by one.
// Per-track failures are recorded and never abort the batch; store
// infrastructure errors and cancellation do.
func (p *Processor) Run(ctx context.Context, step *Step, runID string, limit int) (StepSummary, error) {
	sum := StepSummary{Step: step.Name}
	log := p.logger.WithStep(step.Name, runID)

	tracks, err := p.db.ClaimEligible(ctx, step.Eligible, limit, p.owner, p.leaseTTL)
	if err != nil {
		return sum, fmt.Errorf("claim %s: %w", step.Name, err)
	}
	sum.Claimed = len(tracks)
	if len(tracks) == 0 {
		log.Debug("No eligible tracks")
		return sum, nil
	}
	log.Info("Claimed tracks", "count", len(tracks))

	for i, t := range tracks {
		if ctx.Err() != nil {
			p.release(tracks[i:])
			return sum, ctx.Err()
		}
		outcome, err := p.process(ctx, step, runID, t)
		switch outcome {
		case domain.OutcomeSuccess:
			sum.Succeeded++
		case domain.OutcomeFailed:
			sum.Failed++
		case domain.OutcomeSkipped:
			sum.Skipped++
		}
		if err != nil {
			p.release(tracks[i+1:])
			return sum, err
		}
	}

	log.Info("Step finished", "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

// process handles one claimed track. The returned error is non-nil only when
// the batch must stop.
func (p *Processor) process(ctx context.Context, step *Step, runID string, t *domain.Track) (domain.Outcome, error) {
	log := p.logger.WithStep(step.Name, runID).WithTrack(t.TrackID, t.ISRC)

	if step.Ready != nil {
		if reason := step.Ready(t); reason != "" {
			log.Info("Track not ready", "reason", reason)
			if err := p.db.MarkSkipped(ctx, t.TrackID, p.owner, runID, t.Stage, reason); err != nil {
				return "", fatal(err, log)
			}
			return domain.OutcomeSkipped, nil
		}
	}

	if step.Limiter != nil {
		if err := step.Limiter.Wait(ctx); err != nil {
			p.release([]*domain.Track{t})
			return "", err
		}
	}

	current, err := p.db.MarkAttempting(ctx, t.TrackID, p.owner)
	if err != nil {
		if errors.Is(err, store.ErrLeaseLost) {
			log.Warn("Lease lost before attempt", "error", err)
			return "", nil
		}
		return "", fatal(err, log)
	}

	res, err := p.work(ctx, step, current)
	if ctx.Err() != nil {
		// The attempt stays counted; an interrupted final attempt is swept
		// to failed by the next cycle.
		p.release([]*domain.Track{current})
		return "", ctx.Err()
	}
	if err != nil {
		return p.fail(ctx, runID, current, err.Error(), log)
	}

	err = p.db.MarkSuccess(ctx, store.Success{
		TrackID: current.TrackID,
		Owner:   p.owner,
		RunID:   runID,
		From:    current.Stage,
		Next:    res.Next,
		Payload: res.Payload,
	})
	switch {
	case err == nil:
		log.Info("Stage advanced", "from", current.Stage, "to", res.Next, "attempt", current.RetryCount)
		return domain.OutcomeSuccess, nil
	case errors.Is(err, store.ErrConstraint):
		return p.fail(ctx, runID, current, err.Error(), log)
	case errors.Is(err, store.ErrStageConflict):
		log.Warn("Track moved by another worker", "error", err)
		p.release([]*domain.Track{current})
		return "", nil
	default:
		return "", fatal(err, log)
	}
}

// work calls step.Work and turns a panic into an attempt error.
func (p *Processor) work(ctx context.Context, step *Step, t *domain.Track) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	res, err = step.Work(ctx, t)
	if err == nil && res == nil {
		err = fmt.Errorf("step %s returned no result", step.Name)
	}
	return res, err
}

func (p *Processor) fail(ctx context.Context, runID string, t *domain.Track, msg string, log *logger.Logger) (domain.Outcome, error) {
	after, err := p.db.MarkFailure(ctx, store.Failure{
		TrackID: t.TrackID,
		Owner:   p.owner,
		RunID:   runID,
		Stage:   t.Stage,
		Message: msg,
	})
	if err != nil {
		if errors.Is(err, store.ErrStageConflict) {
			log.Warn("Could not record failure", "error", err)
			return "", nil
		}
		return "", fatal(err, log)
	}
	if after.Stage == domain.StageFailed {
		log.Error("Track failed permanently", "attempts", after.RetryCount, "error", msg)
	} else {
		log.Warn("Attempt failed", "attempt", after.RetryCount, "error", msg)
	}
	return domain.OutcomeFailed, nil
}

// release hands unprocessed claims back so another run can pick them up
// without waiting for the lease to expire.
func (p *Processor) release(tracks []*domain.Track) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, t := range tracks {
		if err := p.db.ReleaseLease(ctx, t.TrackID, p.owner); err != nil {
			p.logger.Warn("Failed to release lease", "track_id", t.TrackID, "error", err)
		}
	}
}

// fatal passes infrastructure errors up and logs per-track ones.
func fatal(err error, log *logger.Logger) error {
	if store.IsInfrastructure(err) {
		return err
	}
	log.Warn("Store rejected update", "error", err)
	return nil
}

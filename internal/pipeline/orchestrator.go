package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/logger"
	"github.com/cesargomez89/songpipe/internal/store"
)

// Mode selects what a run does. With Step set only that step runs; otherwise
// every step runs in DAG order. Continuous repeats the cycle every Delay
// until the context is cancelled.
type Mode struct {
	Step       string
	All        bool
	Continuous bool
	Limit      int
	Delay      time.Duration
}

// Cycle is the outcome of one pass over the selected steps.
type Cycle struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Swept      int           `json:"swept"`
	Steps      []StepSummary `json:"steps"`
	Error      string        `json:"error,omitempty"`
}

type Orchestrator struct {
	db        *store.DB
	processor *Processor
	steps     []*Step
	logger    *logger.Logger

	mu   sync.RWMutex
	last *Cycle
}

func NewOrchestrator(db *store.DB, processor *Processor, steps []*Step, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Default()
	}
	return &Orchestrator{
		db:        db,
		processor: processor,
		steps:     steps,
		logger:    log.WithComponent("orchestrator"),
	}
}

// Validate checks that m names a known step.
func (o *Orchestrator) Validate(m Mode) error {
	_, err := o.selectSteps(m)
	return err
}

// Run executes m. Single and all-step runs return the first orchestrator
// level error. Continuous runs log cycle errors and keep going; they return
// nil once ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, m Mode) error {
	if m.Limit <= 0 {
		m.Limit = constants.DefaultBatchLimit
	}
	if !m.Continuous {
		_, err := o.RunOnce(ctx, m)
		return err
	}

	if m.Delay <= 0 {
		m.Delay = constants.DefaultCycleDelay
	}
	o.logger.Info("Starting continuous mode", "delay", m.Delay, "limit", m.Limit)
	for {
		if _, err := o.RunOnce(ctx, m); err != nil && ctx.Err() == nil {
			o.logger.Error("Cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			o.logger.Info("Stopping continuous mode")
			return nil
		case <-time.After(m.Delay):
		}
	}
}

// RunOnce runs one cycle: sweep interrupted final attempts, then each
// selected step once.
func (o *Orchestrator) RunOnce(ctx context.Context, m Mode) (*Cycle, error) {
	steps, err := o.selectSteps(m)
	if err != nil {
		return nil, err
	}
	if m.Limit <= 0 {
		m.Limit = constants.DefaultBatchLimit
	}

	c := &Cycle{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := o.logger.With("run_id", c.RunID)
	defer func() {
		c.FinishedAt = time.Now().UTC()
		o.setLast(c)
	}()

	swept, err := o.db.SweepInterrupted(ctx, c.RunID)
	if err != nil {
		c.Error = err.Error()
		return c, fmt.Errorf("sweep interrupted tracks: %w", err)
	}
	c.Swept = swept
	if swept > 0 {
		log.Warn("Failed tracks whose final attempt was interrupted", "count", swept)
	}

	for _, step := range steps {
		sum, err := o.processor.Run(ctx, step, c.RunID, m.Limit)
		c.Steps = append(c.Steps, sum)
		if err != nil {
			c.Error = err.Error()
			return c, fmt.Errorf("step %s: %w", step.Name, err)
		}
	}

	log.Info("Cycle finished", "steps", len(c.Steps), "swept", c.Swept)
	return c, nil
}

func (o *Orchestrator) selectSteps(m Mode) ([]*Step, error) {
	if m.Step == "" || m.All {
		return o.steps, nil
	}
	for _, s := range o.steps {
		if s.Name == m.Step {
			return []*Step{s}, nil
		}
	}
	return nil, fmt.Errorf("unknown step %q", m.Step)
}

// LastCycle returns the most recent cycle, or nil before the first one.
func (o *Orchestrator) LastCycle() *Cycle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

func (o *Orchestrator) setLast(c *Cycle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = c
}

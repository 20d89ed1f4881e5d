package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/httpapp"
	"github.com/cesargomez89/songpipe/internal/integrity"
	"github.com/cesargomez89/songpipe/internal/pipeline"
)

type runOptions struct {
	step       string
	all        bool
	continuous bool
	limit      int
	delay      int
	statusAddr string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run pipeline steps once or continuously",
		Long: fmt.Sprintf("Run one step (--step) or every step in order (--all, the default).\nSteps: %s",
			strings.Join(pipeline.StepNames(), ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.step, "step", "", "Run only this step")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Run every step in order")
	cmd.Flags().BoolVar(&opts.continuous, "continuous", false, "Repeat cycles until interrupted")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Tracks claimed per step per cycle (default from config)")
	cmd.Flags().IntVar(&opts.delay, "delay", 0, "Seconds between continuous cycles (default from config)")
	cmd.Flags().StringVar(&opts.statusAddr, "status-addr", "", "Serve /healthz, /stats and /report on this address")
	cmd.MarkFlagsMutuallyExclusive("step", "all")

	return cmd
}

func (o *runOptions) mode(defLimit int, defDelay time.Duration) pipeline.Mode {
	m := pipeline.Mode{
		Step:       strings.TrimSpace(o.step),
		All:        o.all,
		Continuous: o.continuous,
		Limit:      o.limit,
		Delay:      time.Duration(o.delay) * time.Second,
	}
	if m.Limit <= 0 {
		m.Limit = defLimit
	}
	if m.Delay <= 0 {
		m.Delay = defDelay
	}
	return m
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, opts *runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	log := ctx.logger()
	mode := opts.mode(cfg.BatchLimit, cfg.CycleDelay())

	if mode.Continuous && cfg.LockPath != "" {
		lock := flock.New(cfg.LockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("another songpipe run holds %s", cfg.LockPath)
		}
		defer func() { _ = lock.Unlock() }()
	}

	db, err := ctx.store()
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	owner := fmt.Sprintf("%s-%s", hostname(), uuid.NewString()[:8])
	rt, err := buildRuntime(runCtx, cfg, db, mode, owner, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("Failed to release pipeline resources", "error", err)
		}
	}()
	if err := rt.orchestrator.Validate(mode); err != nil {
		return err
	}

	addr := opts.statusAddr
	if addr == "" {
		addr = cfg.StatusAddr
	}
	if addr != "" {
		srv := httpapp.NewServer(addr, httpapp.NewHandler(db, integrity.NewChecker(db, constants.TranslationQuorum), rt.orchestrator, log))
		srv.Start()
		defer func() {
			if err := srv.Shutdown(); err != nil {
				log.Warn("Status server shutdown failed", "error", err)
			}
		}()
	}

	log.Info("Starting run", "owner", owner, "step", mode.Step, "continuous", mode.Continuous, "limit", mode.Limit)
	err = rt.orchestrator.Run(runCtx, mode)
	if errors.Is(err, context.Canceled) {
		log.Info("Run interrupted")
		return nil
	}
	if err != nil {
		return err
	}

	if c := rt.orchestrator.LastCycle(); c != nil && !mode.Continuous {
		printCycle(cmd.OutOrStdout(), c)
	}
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "songpipe"
	}
	return h
}

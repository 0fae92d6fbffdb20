package actions

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
)

// requireRunDate parses s, which must be given: a manual run never defaults to the clock.
func requireRunDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, errors.New("a run date is required (--date YYYY-MM-DD)")
	}
	return h.ParseRunDate(s)
}

// resolveRunDate parses s, or falls back to today minus lagDays when s is empty.
// Only scheduled and Lambda triggers use the fallback.
func resolveRunDate(s string, lagDays int, now time.Time) (time.Time, error) {
	if s == "" {
		if lagDays < 0 {
			return time.Time{}, errors.Errorf("lag days must not be negative, got %v", lagDays)
		}
		return DefaultRunDate(now, lagDays), nil
	}
	return h.ParseRunDate(s)
}

// RunOnce processes a single run date and prints the result to w.
func RunOnce(cfg *RunConfig, runDate string, w io.Writer) error {
	log := newLogger(cfg)
	ctx, cancel := contextWithInterrupt(log)
	defer cancel()
	return runOnce(ctx, log, cfg, runDate, w)
}

func runOnce(ctx context.Context, log logger.Logger, cfg *RunConfig, runDate string, w io.Writer) error {
	d, err := requireRunDate(runDate)
	if err != nil {
		return err
	}
	p, err := NewPipeline(ctx, log, cfg, nil)
	if err != nil {
		return err
	}
	defer p.Close()
	result, runErr := p.Orchestrator.Run(ctx, d)
	if result != nil {
		if err := printOutput(w, cfg.Output, result); err != nil {
			return err
		}
	}
	return runErr
}

// RunBackfill processes every date from `from` to `to` inclusive, stopping at the first failure.
func RunBackfill(cfg *RunConfig, from string, to string, w io.Writer) error {
	log := newLogger(cfg)
	ctx, cancel := contextWithInterrupt(log)
	defer cancel()
	return runBackfill(ctx, log, cfg, from, to, w)
}

func runBackfill(ctx context.Context, log logger.Logger, cfg *RunConfig, from string, to string, w io.Writer) error {
	f, err := h.ParseRunDate(from)
	if err != nil {
		return errors.Wrap(err, "bad --from date")
	}
	t, err := h.ParseRunDate(to)
	if err != nil {
		return errors.Wrap(err, "bad --to date")
	}
	p, err := NewPipeline(ctx, log, cfg, nil)
	if err != nil {
		return err
	}
	defer p.Close()
	results, runErr := p.Orchestrator.Backfill(ctx, f, t)
	if len(results) > 0 {
		if err := printOutput(w, cfg.Output, results); err != nil {
			return err
		}
	}
	return runErr
}

// ShowStatus prints the run log rows for runDate.
func ShowStatus(cfg *RunConfig, runDate string, w io.Writer) error {
	log := newLogger(cfg)
	ctx, cancel := contextWithInterrupt(log)
	defer cancel()
	return showStatus(ctx, log, cfg, runDate, w)
}

func showStatus(ctx context.Context, log logger.Logger, cfg *RunConfig, runDate string, w io.Writer) error {
	d, err := requireRunDate(runDate)
	if err != nil {
		return err
	}
	p, err := NewPipeline(ctx, log, cfg, nil)
	if err != nil {
		return err
	}
	defer p.Close()
	entries, err := p.RunStore.ListRuns(ctx, d)
	if err != nil {
		return err
	}
	return printOutput(w, cfg.Output, entries)
}

// ShowConfig prints the effective configuration with DSN passwords redacted.
func ShowConfig(cfg *RunConfig, w io.Writer) error {
	m, err := cfg.Redacted()
	if err != nil {
		return err
	}
	return printOutput(w, cfg.Output, m)
}

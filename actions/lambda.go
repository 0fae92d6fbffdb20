package actions

import (
	"context"
	"time"

	"github.com/relloyd/scdpipe/orchestrator"
)

// LambdaEvent triggers one run. An empty RunDate means today minus the configured lag days.
type LambdaEvent struct {
	RunDate string `json:"runDate"`
}

// NewLambdaHandler returns a handler for lambda.Start that runs the date in each event.
func NewLambdaHandler(cfg *RunConfig) func(ctx context.Context, evt LambdaEvent) (*orchestrator.RunResult, error) {
	log := newLogger(cfg)
	return func(ctx context.Context, evt LambdaEvent) (*orchestrator.RunResult, error) {
		d, err := resolveRunDate(evt.RunDate, cfg.LagDays, time.Now())
		if err != nil {
			return nil, err
		}
		p, err := NewPipeline(ctx, log, cfg, nil)
		if err != nil {
			return nil, err
		}
		defer p.Close()
		return p.Orchestrator.Run(ctx, d)
	}
}

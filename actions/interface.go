package actions

import (
	"context"
	"time"

	"github.com/relloyd/scdpipe/orchestrator"
	"github.com/relloyd/scdpipe/rdbms"
)

// Runner processes a single run date.
type Runner interface {
	Run(ctx context.Context, runDate time.Time) (*orchestrator.RunResult, error)
}

// RunLister reads the run log of a date.
type RunLister interface {
	ListRuns(ctx context.Context, runDate time.Time) ([]rdbms.RunLogEntry, error)
}

// ConfigGetterSetter reads and writes the config file.
type ConfigGetterSetter interface {
	Get(key string, out interface{}) error
	Set(key string, val interface{}) error
	Delete(key string) error
	GetAllKeys() ([]string, error)
}

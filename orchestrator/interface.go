//go:generate mockgen -package mocks -destination mocks/interface.go -source=interface.go

package orchestrator

import (
	"context"
	"time"

	"github.com/relloyd/scdpipe/components"
	"github.com/relloyd/scdpipe/rdbms"
	"github.com/relloyd/scdpipe/snapshot"
)

// Extractor reads the OLTP snapshot of a run date.
type Extractor interface {
	Extract(ctx context.Context, runDate time.Time) (*snapshot.Snapshot, error)
}

// Warehouse applies the candidates of every table for a run date in one transaction.
type Warehouse interface {
	MergeTables(ctx context.Context, runDate time.Time, policy components.ReplayPolicy, candidates map[string][]components.Candidate) ([]*components.MergePlan, error)
}

// RunStore keeps run locks and the run log.
type RunStore interface {
	AcquireRunLock(ctx context.Context, runDate time.Time, owner string, ttl time.Duration, now time.Time) error
	ReleaseRunLock(ctx context.Context, runDate time.Time, owner string) error
	RecordAttempt(ctx context.Context, entry *rdbms.RunLogEntry) error
	UpdateAttempt(ctx context.Context, entry *rdbms.RunLogEntry) error
	MarkAbandoned(ctx context.Context, runDate time.Time, now time.Time) (int64, error)
}

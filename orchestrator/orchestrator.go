package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/relloyd/scdpipe/components"
	c "github.com/relloyd/scdpipe/constants"
	e "github.com/relloyd/scdpipe/etlerror"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/rdbms"
	"github.com/relloyd/scdpipe/snapshot"
	"github.com/relloyd/scdpipe/stats"
)

type Config struct {
	Log         logger.Logger             `errorTxt:"logger" mandatory:"yes"`
	Extractor   Extractor                 `errorTxt:"extractor" mandatory:"yes"`
	Builders    []components.TableBuilder `errorTxt:"table builders" mandatory:"yes"`
	Warehouse   Warehouse                 `errorTxt:"warehouse" mandatory:"yes"`
	RunStore    RunStore                  `errorTxt:"run store" mandatory:"yes"`
	MaxAttempts int                       // defaults to MaxAttemptsDefault
	RetryDelay  time.Duration             // fixed delay between attempts
	LockTTL     time.Duration             // age after which a run lock is taken over; defaults to RunLockTtlDefault
	Policy      components.ReplayPolicy   // defaults to reject
	Metrics     *stats.Metrics            // optional

	Sleep func(context.Context, time.Duration) error // optional, waits for the retry delay
	Now   func() time.Time                           // optional clock
}

// RunResult is the outcome of Run for one run date.
type RunResult struct {
	RunID    string                           `json:"runId"`
	RunDate  string                           `json:"runDate"`
	State    State                            `json:"state"`
	Attempts int                              `json:"attempts"`
	Stats    map[string]components.MergeStats `json:"stats,omitempty"` // per table, of the successful attempt
	Error    string                           `json:"error,omitempty"`
}

// Orchestrator runs extract, build and merge for one run date at a time with bounded retry.
type Orchestrator struct {
	log         logger.Logger
	extractor   Extractor
	builders    []components.TableBuilder
	warehouse   Warehouse
	store       RunStore
	maxAttempts int
	retryDelay  time.Duration
	lockTTL     time.Duration
	policy      components.ReplayPolicy
	metrics     *stats.Metrics
	sleep       func(context.Context, time.Duration) error
	now         func() time.Time
}

func NewOrchestrator(cfg *Config) (*Orchestrator, error) {
	if err := h.ValidateStructIsPopulated(cfg); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		log:         cfg.Log,
		extractor:   cfg.Extractor,
		builders:    cfg.Builders,
		warehouse:   cfg.Warehouse,
		store:       cfg.RunStore,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		lockTTL:     cfg.LockTTL,
		policy:      cfg.Policy,
		metrics:     cfg.Metrics,
		sleep:       cfg.Sleep,
		now:         cfg.Now,
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = c.MaxAttemptsDefault
	}
	if o.retryDelay < 0 {
		return nil, fmt.Errorf("retry delay must not be negative, got %v", o.retryDelay)
	}
	if o.lockTTL <= 0 {
		o.lockTTL, _ = time.ParseDuration(c.RunLockTtlDefault)
	}
	if o.policy == "" {
		o.policy = components.ReplayPolicyReject
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run processes runDate: it takes the run lock, marks attempts left unfinished by an earlier
// holder of the lock as abandoned and makes up to maxAttempts attempts. Fatal errors stop immediately.
// The returned error is nil only when the final state is SUCCEEDED.
func (o *Orchestrator) Run(ctx context.Context, runDate time.Time) (*RunResult, error) {
	runDate = h.TruncateToDay(runDate)
	result := &RunResult{RunID: xid.New().String(), RunDate: h.FormatDate(runDate), State: StatePending}
	log := logger.WithFields(o.log, logger.Fields{"runId": result.RunID, "runDate": result.RunDate})
	// Bookkeeping must complete even when ctx is cancelled.
	bctx := context.WithoutCancel(ctx)
	if err := o.store.AcquireRunLock(ctx, runDate, result.RunID, o.lockTTL, o.now()); err != nil {
		var rl *e.RunLockedError
		if errors.As(err, &rl) {
			log.Error(err)
			o.metrics.RunFinished(stats.OutcomeLocked, runDate)
			result.Error = err.Error()
			return result, err
		}
		return o.fail(result, err)
	}
	defer func() {
		if err := o.store.ReleaseRunLock(bctx, runDate, result.RunID); err != nil {
			log.Error(err)
		}
	}()
	// Only the lock holder may decide that earlier attempts died.
	n, err := o.store.MarkAbandoned(ctx, runDate, o.now())
	if err != nil {
		return o.fail(result, err)
	}
	if n > 0 {
		log.Warn("marked ", n, " unfinished attempts as ", StateAbandoned)
	}
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		result.Attempts = attempt
		alog := logger.WithFields(log, logger.Fields{"attempt": attempt})
		entry := &rdbms.RunLogEntry{
			RunID:     result.RunID,
			RunDate:   runDate,
			Attempt:   attempt,
			State:     StatePending.String(),
			StartedAt: o.now(),
		}
		if err := o.store.RecordAttempt(bctx, entry); err != nil {
			return o.fail(result, err)
		}
		watcher := stats.NewStageWatcher(alog, o.metrics, o.now)
		plans, attemptErr := o.attempt(ctx, alog, entry, watcher)
		finished := o.now()
		entry.FinishedAt = &finished
		if attemptErr == nil {
			entry.State = StateSucceeded.String()
			result.Stats = make(map[string]components.MergeStats, len(plans))
			for _, p := range plans {
				result.Stats[p.Table.TableName] = p.Stats
				entry.MergeStats.Add(p.Stats)
			}
			if err := o.store.UpdateAttempt(bctx, entry); err != nil {
				// The merge is committed; report the bookkeeping failure without failing the run.
				alog.Error("unable to record successful attempt: ", err)
			}
			o.metrics.AttemptFinished(entry.Stage, stats.OutcomeSucceeded)
			o.metrics.Merged(plans)
			o.metrics.RunFinished(stats.OutcomeSucceeded, runDate)
			logAttempt(alog, entry, stats.OutcomeSucceeded, watcher)
			result.State = StateSucceeded
			return result, nil
		}
		entry.State = StateFailed.String()
		entry.Error = attemptErr.Error()
		if err := o.store.UpdateAttempt(bctx, entry); err != nil {
			alog.Error("unable to record failed attempt: ", err)
		}
		retry := e.IsRetryable(attemptErr) && attempt < o.maxAttempts
		outcome := stats.OutcomeFailed
		if retry {
			outcome = stats.OutcomeRetrying
		}
		o.metrics.AttemptFinished(entry.Stage, outcome)
		logAttempt(alog, entry, outcome, watcher)
		if !retry {
			return o.fail(result, attemptErr)
		}
		alog.Info("retrying in ", o.retryDelay)
		if err := o.sleep(ctx, o.retryDelay); err != nil {
			return o.fail(result, errors.Wrap(err, "retry cancelled"))
		}
	}
	return o.fail(result, errors.New("no attempts made"))
}

func (o *Orchestrator) fail(result *RunResult, err error) (*RunResult, error) {
	runDate, _ := h.ParseRunDate(result.RunDate)
	result.State = StateFailed
	result.Error = err.Error()
	o.metrics.RunFinished(stats.OutcomeFailed, runDate)
	return result, err
}

// attempt runs the stages once. Stage failures are returned as typed etlerror errors.
func (o *Orchestrator) attempt(ctx context.Context, log logger.Logger, entry *rdbms.RunLogEntry, watcher *stats.StageWatcher) ([]*components.MergePlan, error) {
	runDate := entry.RunDate
	// Extract.
	if err := o.transition(ctx, entry, StateExtracting, e.StageExtract); err != nil {
		return nil, err
	}
	stop := watcher.Start(e.StageExtract)
	snap, err := o.extractor.Extract(ctx, runDate)
	if err != nil {
		stop("failed")
		return nil, stageError(ctx, err, wrapForStage(e.StageExtract))
	}
	stop("done")
	// Build.
	if err := o.transition(ctx, entry, StateBuilding, e.StageBuild); err != nil {
		return nil, err
	}
	candidates, err := o.build(ctx, log, snap, watcher)
	if err != nil {
		return nil, err
	}
	// Merge on a context that ignores cancellation so a signal cannot interrupt the write.
	if err := o.transition(ctx, entry, StateMerging, e.StageMerge); err != nil {
		return nil, err
	}
	stop = watcher.Start(e.StageMerge)
	plans, err := o.warehouse.MergeTables(context.WithoutCancel(ctx), runDate, o.policy, candidates)
	if err != nil {
		stop("failed")
		return nil, stageError(ctx, err, wrapForStage(e.StageMerge))
	}
	stop("done")
	return plans, nil
}

func (o *Orchestrator) build(ctx context.Context, log logger.Logger, snap *snapshot.Snapshot, watcher *stats.StageWatcher) (map[string][]components.Candidate, error) {
	stop := watcher.Start(e.StageBuild)
	candidates, err := components.RunBuilders(ctx, log, o.builders, snap)
	if err != nil {
		stop("failed")
		return nil, stageError(ctx, err, wrapForStage(e.StageBuild))
	}
	stop("done")
	return candidates, nil
}

// transition moves entry to next and writes it to the run log.
// Cancellation is honoured here, between stages. A failed write is an error of the stage
// being entered so the attempt can be retried.
func (o *Orchestrator) transition(ctx context.Context, entry *rdbms.RunLogEntry, next State, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, err := ParseState(entry.State)
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("invalid run state transition from %v to %v", current, next)
	}
	entry.State = next.String()
	entry.Stage = stage
	if err := o.store.UpdateAttempt(context.WithoutCancel(ctx), entry); err != nil {
		return stageError(ctx, errors.Wrapf(err, "unable to record state %v", next), wrapForStage(stage))
	}
	return nil
}

// wrapForStage returns the constructor of the typed error for stage.
func wrapForStage(stage string) func(error) error {
	switch stage {
	case e.StageExtract:
		return func(err error) error { return &e.ExtractionError{Err: err} }
	case e.StageBuild:
		return func(err error) error { return &e.BuildError{Err: err} }
	}
	return func(err error) error { return &e.MergeError{Err: err} }
}

// stageError keeps typed and context errors and wraps anything else with wrap.
func stageError(ctx context.Context, err error, wrap func(error) error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	if e.IsFatal(err) || e.Stage(err) != "" {
		return err
	}
	return wrap(err)
}

func logAttempt(log logger.Logger, entry *rdbms.RunLogEntry, outcome string, watcher *stats.StageWatcher) {
	fields := logger.Fields{
		"stage":   entry.Stage,
		"outcome": outcome,
		"timings": watcher.String(),
	}
	if entry.Error != "" {
		fields["error"] = entry.Error
	}
	l := logger.WithFields(log, fields)
	if outcome == stats.OutcomeSucceeded {
		l.Info("attempt finished: inserted=", entry.Inserted, "; closed=", entry.Closed,
			"; corrected=", entry.Corrected, "; unchanged=", entry.Unchanged)
		return
	}
	l.Error("attempt finished")
}

// Backfill runs every date from `from` to `to` in ascending order and stops at the first date
// that does not succeed.
func (o *Orchestrator) Backfill(ctx context.Context, from time.Time, to time.Time) ([]*RunResult, error) {
	dates, err := h.DateRange(from, to)
	if err != nil {
		return nil, err
	}
	results := make([]*RunResult, 0, len(dates))
	for _, d := range dates {
		res, err := o.Run(ctx, d)
		results = append(results, res)
		if err != nil {
			o.log.Error("backfill stopped at ", h.FormatDate(d), ": ", err)
			return results, err
		}
	}
	return results, nil
}

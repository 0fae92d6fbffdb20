// Package etlerror holds the typed failures a run can end with.
// Stage errors (extraction, build, merge) are retried by the orchestrator.
// Data errors (duplicate keys, broken history, replay conflicts) and lock contention are fatal.
package etlerror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage names used in error messages and the run log.
const (
	StageExtract = "extract"
	StageBuild   = "build"
	StageMerge   = "merge"
)

// ExtractionError is raised when an OLTP table cannot be read or is malformed.
type ExtractionError struct {
	Table  string
	Column string
	Row    int // 1-based row number in the result set, 0 if not row specific
	Err    error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	b.WriteString("extraction failed")
	if e.Table != "" {
		fmt.Fprintf(&b, " for table %q", e.Table)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %v", e.Row)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// BuildError is raised when candidates cannot be derived from a snapshot.
type BuildError struct {
	Table string
	Key   string
	Err   error
}

func (e *BuildError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("build of %q failed for key %q: %v", e.Table, e.Key, e.Err)
	}
	return fmt.Sprintf("build of %q failed: %v", e.Table, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// MergeError is raised when the warehouse transaction fails.
// Nothing is committed when this is returned.
type MergeError struct {
	Table string
	Err   error
}

func (e *MergeError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("merge into %q failed: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("merge failed: %v", e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// DuplicateKeyError is raised when two candidates, or two source rows feeding them, share a business key.
type DuplicateKeyError struct {
	Table string
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate business key %q in %q", e.Key, e.Table)
}

// InvariantViolation is raised when existing warehouse history is inconsistent.
type InvariantViolation struct {
	Table  string
	Key    string
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %q for key %q: %v", e.Table, e.Key, e.Reason)
}

// ReplayConflictError is raised when a run date at or before the active version
// carries attributes that differ from the recorded history.
type ReplayConflictError struct {
	Table       string
	Key         string
	RunDate     time.Time
	ActiveStart time.Time
}

func (e *ReplayConflictError) Error() string {
	return fmt.Sprintf("replay conflict in %q for key %q: run date %v differs from history (active version starts %v)",
		e.Table, e.Key, e.RunDate.Format("2006-01-02"), e.ActiveStart.Format("2006-01-02"))
}

// RunLockedError is raised when another process holds the lock for a run date.
type RunLockedError struct {
	RunDate    time.Time
	Owner      string
	AcquiredAt time.Time
}

func (e *RunLockedError) Error() string {
	return fmt.Sprintf("run date %v is locked by %q since %v",
		e.RunDate.Format("2006-01-02"), e.Owner, e.AcquiredAt.UTC().Format(time.RFC3339))
}

// IsRetryable reports whether the orchestrator may start another attempt after err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsFatal(err) {
		return false
	}
	var ee *ExtractionError
	var be *BuildError
	var me *MergeError
	return errors.As(err, &ee) || errors.As(err, &be) || errors.As(err, &me)
}

// IsFatal reports whether err is a data or lock error that must never be retried.
func IsFatal(err error) bool {
	var dk *DuplicateKeyError
	var iv *InvariantViolation
	var rc *ReplayConflictError
	var rl *RunLockedError
	return errors.As(err, &dk) || errors.As(err, &iv) || errors.As(err, &rc) || errors.As(err, &rl)
}

// Stage returns the stage name err belongs to, or "" when it is not a stage error.
func Stage(err error) string {
	var ee *ExtractionError
	var be *BuildError
	var me *MergeError
	switch {
	case errors.As(err, &ee):
		return StageExtract
	case errors.As(err, &be):
		return StageBuild
	case errors.As(err, &me):
		return StageMerge
	}
	return ""
}

package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	c "github.com/relloyd/scdpipe/constants"
	e "github.com/relloyd/scdpipe/etlerror"
	h "github.com/relloyd/scdpipe/helper"
)

// AcquireRunLock takes the lock of runDate for owner.
// A lock held for longer than ttl is taken over and logged at warn level.
// A live lock held by someone else returns a RunLockedError.
func (s *RunStore) AcquireRunLock(ctx context.Context, runDate time.Time, owner string, ttl time.Duration, now time.Time) error {
	day := h.FormatDate(runDate)
	insert := fmt.Sprintf("insert into %v (run_date, owner, acquired_at) values (%v, %v, %v)",
		c.TableNameRunLock, s.bind("run_date"), s.bind("owner"), s.bind("acquired_at"))
	for try := 0; try < 2; try++ {
		_, insertErr := s.conn.ExecContext(ctx, insert, day, owner, formatTime(now))
		if insertErr == nil {
			s.log.Debug("acquired run lock for ", day, " as ", owner)
			return nil
		}
		holder, acquiredAt, found, err := s.readRunLock(ctx, day)
		if err != nil {
			return errors.Wrapf(err, "unable to acquire run lock for %v after insert failed with %v", day, insertErr)
		}
		if !found { // released between our insert and select
			continue
		}
		if now.Sub(acquiredAt) <= ttl {
			return &e.RunLockedError{RunDate: runDate, Owner: holder, AcquiredAt: acquiredAt}
		}
		// Take over the stale lock only if nobody else did first.
		takeover := fmt.Sprintf("update %v set owner = %v, acquired_at = %v where run_date = %v and owner = %v and acquired_at = %v",
			c.TableNameRunLock, s.bind("owner"), s.bind("acquired_at"), s.bind("run_date"), s.bind("owner"), s.bind("acquired_at"))
		res, err := s.conn.ExecContext(ctx, takeover, owner, formatTime(now), day, holder, formatTime(acquiredAt))
		if err != nil {
			return errors.Wrapf(err, "unable to take over run lock for %v", day)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return &e.RunLockedError{RunDate: runDate, Owner: holder, AcquiredAt: acquiredAt}
		}
		s.log.Warn("took over stale run lock for ", day, " held by ", holder, " since ", formatTime(acquiredAt))
		return nil
	}
	return fmt.Errorf("unable to acquire run lock for %v", day)
}

// ReleaseRunLock removes the lock of runDate if owner holds it.
func (s *RunStore) ReleaseRunLock(ctx context.Context, runDate time.Time, owner string) error {
	stmt := fmt.Sprintf("delete from %v where run_date = %v and owner = %v", c.TableNameRunLock, s.bind("run_date"), s.bind("owner"))
	if _, err := s.conn.ExecContext(ctx, stmt, h.FormatDate(runDate), owner); err != nil {
		return errors.Wrapf(err, "unable to release run lock for %v", h.FormatDate(runDate))
	}
	s.log.Debug("released run lock for ", h.FormatDate(runDate))
	return nil
}

func (s *RunStore) readRunLock(ctx context.Context, day string) (owner string, acquiredAt time.Time, found bool, err error) {
	stmt := fmt.Sprintf("select %v, %v from %v where run_date = %v",
		s.dml.SelectAsText("owner"), s.dml.SelectAsText("acquired_at"), c.TableNameRunLock, s.bind("run_date"))
	rows, err := s.conn.QueryContext(ctx, stmt, day)
	if err != nil {
		return
	}
	defer rows.Close()
	if !rows.Next() {
		err = rows.Err()
		return
	}
	var o, a sql.NullString
	if err = rows.Scan(&o, &a); err != nil {
		return
	}
	acquiredAt, err = time.Parse(time.RFC3339, a.String)
	return o.String, acquiredAt, true, err
}

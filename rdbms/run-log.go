package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/relloyd/scdpipe/components"
	c "github.com/relloyd/scdpipe/constants"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/rdbms/shared"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

// RunLogEntry is one attempt of one run date.
type RunLogEntry struct {
	RunID      string     `json:"runId" yaml:"runId"`
	RunDate    time.Time  `json:"runDate" yaml:"runDate"`
	Attempt    int        `json:"attempt" yaml:"attempt"`
	State      string     `json:"state" yaml:"state"`
	Stage      string     `json:"stage,omitempty" yaml:"stage,omitempty"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt" yaml:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
	components.MergeStats `yaml:",inline"`
}

func bookkeepingColumn(name string, t tabledefinition.DataType, nullable bool) tabledefinition.TableColumn {
	return tabledefinition.TableColumn{ColName: name, DataType: t, Nullable: nullable}
}

var runLogColumns = []tabledefinition.TableColumn{
	bookkeepingColumn("run_id", tabledefinition.DataTypeString, false),
	bookkeepingColumn("run_date", tabledefinition.DataTypeString, false),
	bookkeepingColumn("attempt", tabledefinition.DataTypeInteger, false),
	bookkeepingColumn("state", tabledefinition.DataTypeString, false),
	bookkeepingColumn("stage", tabledefinition.DataTypeString, true),
	bookkeepingColumn("error", tabledefinition.DataTypeString, true),
	bookkeepingColumn("started_at", tabledefinition.DataTypeString, false),
	bookkeepingColumn("finished_at", tabledefinition.DataTypeString, true),
	bookkeepingColumn("inserted", tabledefinition.DataTypeInteger, false),
	bookkeepingColumn("closed", tabledefinition.DataTypeInteger, false),
	bookkeepingColumn("corrected", tabledefinition.DataTypeInteger, false),
	bookkeepingColumn("unchanged", tabledefinition.DataTypeInteger, false),
}

var runLockColumns = []tabledefinition.TableColumn{
	bookkeepingColumn("run_date", tabledefinition.DataTypeString, false),
	bookkeepingColumn("owner", tabledefinition.DataTypeString, false),
	bookkeepingColumn("acquired_at", tabledefinition.DataTypeString, false),
}

// RunStore keeps the run log and run locks in the warehouse database.
type RunStore struct {
	log    logger.Logger
	conn   shared.Connector
	mapper tabledefinition.Mapper
	dml    shared.DmlGenerator
	binds  map[string]string
}

func NewRunStore(log logger.Logger, conn shared.Connector) (*RunStore, error) {
	mapper, err := tabledefinition.GetMapper(conn.GetType())
	if err != nil {
		return nil, err
	}
	s := &RunStore{log: log, conn: conn, mapper: mapper, dml: conn.GetDmlGenerator(), binds: make(map[string]string)}
	for _, cols := range [][]tabledefinition.TableColumn{runLogColumns, runLockColumns} {
		for _, col := range cols {
			s.binds[col.ColName] = s.dml.BindValue(col)
		}
	}
	return s, nil
}

// EnsureSchema creates the run log and run lock tables if they do not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		tabledefinition.GeneratePlainTableDDL(c.TableNameRunLog, runLogColumns, nil, s.mapper),
		tabledefinition.GeneratePlainTableDDL(c.TableNameRunLock, runLockColumns, []string{"run_date"}, s.mapper),
	}
	for _, stmt := range stmts {
		s.log.Debug("executing DDL: ", stmt)
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "unable to create bookkeeping tables")
		}
	}
	return nil
}

// bind returns the bind text of a bookkeeping column.
func (s *RunStore) bind(col string) string {
	return s.binds[col]
}

func (s *RunStore) bindSlice(cols []string) []string {
	retval := make([]string, len(cols))
	for idx, name := range cols {
		retval[idx] = s.bind(name)
	}
	return retval
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// RecordAttempt inserts the log row for a new attempt.
func (s *RunStore) RecordAttempt(ctx context.Context, entry *RunLogEntry) error {
	cols := make([]string, len(runLogColumns))
	for idx, col := range runLogColumns {
		cols[idx] = col.ColName
	}
	var finished interface{}
	if entry.FinishedAt != nil {
		finished = formatTime(*entry.FinishedAt)
	}
	stmt := fmt.Sprintf("insert into %v (%v) values (%v)", c.TableNameRunLog, strings.Join(cols, ", "), strings.Join(s.bindSlice(cols), ", "))
	_, err := s.conn.ExecContext(ctx, stmt,
		entry.RunID, h.FormatDate(entry.RunDate), int64(entry.Attempt), entry.State, nullString(entry.Stage), nullString(entry.Error),
		formatTime(entry.StartedAt), finished,
		int64(entry.Inserted), int64(entry.Closed), int64(entry.Corrected), int64(entry.Unchanged))
	return errors.Wrap(err, "unable to record run attempt")
}

// UpdateAttempt writes the state, stage, error, finish time and counts of an attempt.
func (s *RunStore) UpdateAttempt(ctx context.Context, entry *RunLogEntry) error {
	setCols := []string{"state", "stage", "error", "finished_at", "inserted", "closed", "corrected", "unchanged"}
	whereCols := []string{"run_id", "attempt"}
	var finished interface{}
	if entry.FinishedAt != nil {
		finished = formatTime(*entry.FinishedAt)
	}
	stmt := fmt.Sprintf("update %v set %v where %v", c.TableNameRunLog,
		h.GenerateStringOfColsEqualsBinds(setCols, s.bindSlice(setCols), ", "),
		h.GenerateStringOfColsEqualsBinds(whereCols, s.bindSlice(whereCols), " and "))
	_, err := s.conn.ExecContext(ctx, stmt,
		entry.State, nullString(entry.Stage), nullString(entry.Error), finished,
		int64(entry.Inserted), int64(entry.Closed), int64(entry.Corrected), int64(entry.Unchanged),
		entry.RunID, int64(entry.Attempt))
	return errors.Wrap(err, "unable to update run attempt")
}

// MarkAbandoned sets every non-terminal log row of runDate to ABANDONED and returns how many were changed.
// Rows left like this belong to a process that died mid attempt.
func (s *RunStore) MarkAbandoned(ctx context.Context, runDate time.Time, now time.Time) (int64, error) {
	stmt := fmt.Sprintf("update %v set state = %v, error = %v, finished_at = %v where run_date = %v and state not in ('%v', '%v', '%v')",
		c.TableNameRunLog, s.bind("state"), s.bind("error"), s.bind("finished_at"), s.bind("run_date"),
		c.RunStateSucceeded, c.RunStateFailed, c.RunStateAbandoned)
	res, err := s.conn.ExecContext(ctx, stmt, c.RunStateAbandoned, "process ended during attempt", formatTime(now), h.FormatDate(runDate))
	if err != nil {
		return 0, errors.Wrap(err, "unable to mark abandoned attempts")
	}
	return res.RowsAffected()
}

// ListRuns returns the log rows of runDate in attempt order.
func (s *RunStore) ListRuns(ctx context.Context, runDate time.Time) ([]RunLogEntry, error) {
	selectList := make([]string, len(runLogColumns))
	for idx, col := range runLogColumns {
		selectList[idx] = s.dml.SelectAsText(col.ColName)
	}
	stmt := fmt.Sprintf("select %v from %v where run_date = %v order by started_at, attempt",
		strings.Join(selectList, ", "), c.TableNameRunLog, s.bind("run_date"))
	rows, err := s.conn.QueryContext(ctx, stmt, h.FormatDate(runDate))
	if err != nil {
		return nil, errors.Wrap(err, "unable to read run log")
	}
	defer rows.Close()
	retval := make([]RunLogEntry, 0)
	v := make([]sql.NullString, len(runLogColumns))
	ptrs := make([]interface{}, len(v))
	for idx := range v {
		ptrs[idx] = &v[idx]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		entry, err := parseRunLogEntry(v)
		if err != nil {
			return nil, err
		}
		retval = append(retval, entry)
	}
	return retval, rows.Err()
}

func parseRunLogEntry(v []sql.NullString) (entry RunLogEntry, err error) {
	ints := make([]int64, 0, 5)
	for _, idx := range []int{2, 8, 9, 10, 11} {
		n, err := runLogColumns[idx].ParseText(v[idx].String, v[idx].Valid)
		if err != nil {
			return entry, err
		}
		ints = append(ints, n.(int64))
	}
	entry.RunID = v[0].String
	if entry.RunDate, err = h.ParseRunDate(v[1].String); err != nil {
		return entry, err
	}
	entry.Attempt = int(ints[0])
	entry.State = v[3].String
	entry.Stage = v[4].String
	entry.Error = v[5].String
	if entry.StartedAt, err = time.Parse(time.RFC3339, v[6].String); err != nil {
		return entry, err
	}
	if v[7].Valid {
		t, err := time.Parse(time.RFC3339, v[7].String)
		if err != nil {
			return entry, err
		}
		entry.FinishedAt = &t
	}
	entry.Inserted, entry.Closed, entry.Corrected, entry.Unchanged = int(ints[1]), int(ints[2]), int(ints[3]), int(ints[4])
	return entry, nil
}

package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/pkg/errors"

	"github.com/relloyd/scdpipe/components"
	c "github.com/relloyd/scdpipe/constants"
	e "github.com/relloyd/scdpipe/etlerror"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/rdbms/shared"
	"github.com/relloyd/scdpipe/stream"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

type WarehouseConfig struct {
	Log       logger.Logger                      `errorTxt:"logger" mandatory:"yes"`
	Conn      shared.Connector                   `errorTxt:"warehouse connection" mandatory:"yes"`
	Tables    []*tabledefinition.TableDefinition `errorTxt:"warehouse tables" mandatory:"yes"`
	BatchSize int                                // rows per DML statement; defaults to WarehouseBatchNumRowsDefault
}

// Warehouse applies SCD2 merge plans to historized tables in one transaction per run date.
type Warehouse struct {
	log       logger.Logger
	conn      shared.Connector
	mapper    tabledefinition.Mapper
	dml       shared.DmlGenerator
	tables    []*tabledefinition.TableDefinition
	batchSize int
}

func NewWarehouse(cfg *WarehouseConfig) (*Warehouse, error) {
	if err := h.ValidateStructIsPopulated(cfg); err != nil {
		return nil, err
	}
	mapper, err := tabledefinition.GetMapper(cfg.Conn.GetType())
	if err != nil {
		return nil, err
	}
	w := &Warehouse{
		log:       cfg.Log,
		conn:      cfg.Conn,
		mapper:    mapper,
		dml:       cfg.Conn.GetDmlGenerator(),
		tables:    cfg.Tables,
		batchSize: cfg.BatchSize,
	}
	if w.batchSize <= 0 {
		w.batchSize = c.WarehouseBatchNumRowsDefault
	}
	return w, nil
}

// EnsureSchema creates every warehouse table if it does not exist.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	for _, t := range w.tables {
		for _, stmt := range tabledefinition.GenerateTableDDL(t, w.mapper) {
			w.log.Debug("executing DDL: ", stmt)
			if _, err := w.conn.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "unable to create table %v", t.TableName)
			}
		}
	}
	return nil
}

// Tables returns the warehouse tables in merge order.
func (w *Warehouse) Tables() []*tabledefinition.TableDefinition {
	return w.tables
}

// MergeTables plans and applies the merge of every table for runDate inside one transaction.
// Candidates are keyed by table name; a table without candidates is left untouched.
// Typed planning errors are returned as they are; database failures are returned as a MergeError.
// Nothing is committed unless every table succeeds.
func (w *Warehouse) MergeTables(ctx context.Context, runDate time.Time, policy components.ReplayPolicy, candidates map[string][]components.Candidate) (plans []*components.MergePlan, err error) {
	tx, err := w.conn.BeginTx(ctx)
	if err != nil {
		return nil, &e.MergeError{Err: err}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				w.log.Error("rollback failed: ", rbErr)
			}
			plans = nil
		}
	}()
	for _, t := range w.tables {
		history, loadErr := w.LoadHistory(ctx, tx, t)
		if loadErr != nil {
			return nil, &e.MergeError{Table: t.TableName, Err: loadErr}
		}
		plan, planErr := components.NewMergePlan(&components.MergeDiffConfig{
			Log:        w.log,
			Table:      t,
			RunDate:    runDate,
			Policy:     policy,
			Candidates: candidates[t.TableName],
			History:    history,
		})
		if planErr != nil {
			return nil, planErr
		}
		if applyErr := w.applyPlan(ctx, tx, plan); applyErr != nil {
			return nil, &e.MergeError{Table: t.TableName, Err: applyErr}
		}
		plans = append(plans, plan)
	}
	if err = tx.Commit(); err != nil {
		return nil, &e.MergeError{Err: errors.Wrap(err, "commit failed")}
	}
	return plans, nil
}

// LoadHistory reads every stored version of table t. Values are read as text and parsed per column type.
func (w *Warehouse) LoadHistory(ctx context.Context, q shared.Querier, t *tabledefinition.TableDefinition) ([]components.WarehouseRow, error) {
	cols := t.DataColumns()
	selectList := make([]string, 0, len(cols)+1)
	selectList = append(selectList, w.dml.SelectAsText(t.SurrogateKey()))
	for _, col := range cols {
		selectList = append(selectList, w.dml.SelectAsText(col.ColName))
	}
	query := fmt.Sprintf("select %v from %v order by %v, %v",
		strings.Join(selectList, ", "), t.TableName, strings.Join(t.KeyNames(), ", "), c.ColumnNameEffectiveStartDate)
	w.log.Trace("loading history: ", query)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	scanVals := make([]sql.NullString, len(selectList))
	scanPtrs := make([]interface{}, len(selectList))
	for idx := range scanVals {
		scanPtrs[idx] = &scanVals[idx]
	}
	retval := make([]components.WarehouseRow, 0)
	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			return nil, err
		}
		r, err := parseWarehouseRow(t, cols, scanVals)
		if err != nil {
			return nil, errors.Wrapf(err, "table %v", t.TableName)
		}
		retval = append(retval, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	w.log.Debug("loaded ", len(retval), " rows from ", t.TableName)
	return retval, nil
}

func parseWarehouseRow(t *tabledefinition.TableDefinition, cols []tabledefinition.TableColumn, vals []sql.NullString) (components.WarehouseRow, error) {
	r := components.WarehouseRow{Keys: stream.NewRecord(), Attributes: stream.NewRecord()}
	sk, err := strconv.ParseInt(strings.TrimSpace(vals[0].String), 10, 64)
	if err != nil {
		return r, errors.Wrap(err, "bad surrogate key")
	}
	r.SurrogateKey = sk
	numKeys := len(t.KeyColumns)
	numTracked := len(t.TrackedColumns)
	for idx, col := range cols {
		v, err := col.ParseText(vals[idx+1].String, vals[idx+1].Valid)
		if err != nil {
			return r, errors.Wrapf(err, "surrogate key %v", sk)
		}
		switch {
		case idx < numKeys:
			r.Keys.SetData(col.ColName, v)
		case idx < numKeys+numTracked:
			r.Attributes.SetData(col.ColName, v)
		case col.ColName == c.ColumnNameEffectiveStartDate:
			r.EffectiveStartDate = v.(time.Time)
		case col.ColName == c.ColumnNameEffectiveEndDate:
			if v != nil {
				end := v.(time.Time)
				r.EffectiveEndDate = &end
			}
		case col.ColName == c.ColumnNameIsActive:
			r.IsActive = v.(bool)
		}
	}
	return r, nil
}

// applyPlan executes closes, then corrections, then inserts.
func (w *Warehouse) applyPlan(ctx context.Context, tx shared.Transacter, plan *components.MergePlan) error {
	t := plan.Table
	skCol := tabledefinition.TableColumn{ColName: t.SurrogateKey(), DataType: tabledefinition.DataTypeInteger}
	history := tabledefinition.HistoryColumns()
	startCol, endCol, activeCol := history[0], history[1], history[2]
	// Closes.
	closes := plan.MutationsOfKind(components.MutationClose)
	if len(closes) > 0 {
		gen := w.dml.NewUpdateGenerator(w.generatorConfig(t, []tabledefinition.TableColumn{skCol}, []tabledefinition.TableColumn{endCol, activeCol}))
		values := make([][]interface{}, 0, len(closes))
		for _, m := range closes {
			values = append(values, []interface{}{
				w.dml.DriverValue(skCol, m.SurrogateKey),
				w.dml.DriverValue(endCol, *m.EffectiveEndDate),
				w.dml.DriverValue(activeCol, false),
			})
		}
		if err := w.execBatches(ctx, tx, gen, values); err != nil {
			return errors.Wrap(err, "close failed")
		}
	}
	// Corrections.
	corrections := plan.MutationsOfKind(components.MutationCorrect)
	if len(corrections) > 0 {
		gen := w.dml.NewUpdateGenerator(w.generatorConfig(t, []tabledefinition.TableColumn{skCol}, t.TrackedColumns))
		values := make([][]interface{}, 0, len(corrections))
		for _, m := range corrections {
			row := []interface{}{w.dml.DriverValue(skCol, m.SurrogateKey)}
			row = append(row, w.recordValues(t.TrackedColumns, m.Attributes)...)
			values = append(values, row)
		}
		if err := w.execBatches(ctx, tx, gen, values); err != nil {
			return errors.Wrap(err, "correction failed")
		}
	}
	// Inserts.
	inserts := plan.MutationsOfKind(components.MutationInsert)
	if len(inserts) > 0 {
		others := append(append([]tabledefinition.TableColumn{}, t.TrackedColumns...), history...)
		gen := w.dml.NewInsertGenerator(w.generatorConfig(t, t.KeyColumns, others))
		values := make([][]interface{}, 0, len(inserts))
		for _, m := range inserts {
			row := w.recordValues(t.KeyColumns, m.Keys)
			row = append(row, w.recordValues(t.TrackedColumns, m.Attributes)...)
			row = append(row,
				w.dml.DriverValue(startCol, m.EffectiveStartDate),
				w.dml.DriverValue(endCol, nil),
				w.dml.DriverValue(activeCol, true))
			values = append(values, row)
		}
		if err := w.execBatches(ctx, tx, gen, values); err != nil {
			return errors.Wrap(err, "insert failed")
		}
	}
	w.log.Info("merged table ", t.TableName, ": inserted=", plan.Stats.Inserted, "; closed=", plan.Stats.Closed,
		"; corrected=", plan.Stats.Corrected, "; unchanged=", plan.Stats.Unchanged)
	return nil
}

func (w *Warehouse) recordValues(cols []tabledefinition.TableColumn, rec stream.Record) []interface{} {
	retval := make([]interface{}, len(cols))
	for idx, col := range cols {
		retval[idx] = w.dml.DriverValue(col, rec.GetData(col.ColName))
	}
	return retval
}

func (w *Warehouse) generatorConfig(t *tabledefinition.TableDefinition, keys []tabledefinition.TableColumn, others []tabledefinition.TableColumn) *shared.SqlStatementGeneratorConfig {
	binds := make(map[string]string, len(keys)+len(others))
	toMap := func(cols []tabledefinition.TableColumn) *om.OrderedMap {
		m := om.NewOrderedMap()
		for _, col := range cols {
			m.Set(col.ColName, col.ColName)
			binds[col.ColName] = w.dml.BindValue(col)
		}
		return m
	}
	return &shared.SqlStatementGeneratorConfig{
		Log:             w.log,
		OutputTable:     t.TableName,
		TargetKeyCols:   toMap(keys),
		TargetOtherCols: toMap(others),
		ColumnBinds:     binds,
	}
}

// execBatches executes the generator's statement once per batch of at most batchSize rows.
func (w *Warehouse) execBatches(ctx context.Context, tx shared.Execer, gen shared.SqlStmtTxtBatcher, rows [][]interface{}) error {
	for start := 0; start < len(rows); start += w.batchSize {
		end := start + w.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		gen.InitBatch(end - start)
		for _, row := range rows[start:end] {
			if _, err := gen.AddValuesToBatch(row); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, gen.GetStatement(), gen.GetValues()...); err != nil {
			return err
		}
	}
	return nil
}

package shared

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// SqlUpdateTxtBatch implements SqlStmtTxtBatcher
// and is able to generate UPDATE statements with batches of rows supplied.
type SqlUpdateTxtBatch struct {
	SqlStatementGeneratorConfig // mandatory to be populated.
	sqlCoreCfg
	ColList    []string // columns to set
	KeyList    []string // columns to join on
	AllColList []string // keys followed by columns to set
}

// NewUpdateGenerator creates a new SqlStmtTxtBatcher for UPDATE statements.
// Values supplied to AddValuesToBatch are key columns followed by the columns to set.
func (g *DmlGeneratorTxtBatch) NewUpdateGenerator(cfg *SqlStatementGeneratorConfig) SqlStmtTxtBatcher {
	if err := ValidateSqlStatementGeneratorConfig(cfg); err != nil {
		panic(fmt.Sprintf("invalid UPDATE generator config: %v", err))
	}
	cfg.Log.Debug("Creating NewUpdateGenerator for ", cfg.OutputTable)
	o := &SqlUpdateTxtBatch{SqlStatementGeneratorConfig: *cfg}
	o.setupSqlStatement()
	return o
}

func (o *SqlUpdateTxtBatch) setupSqlStatement() {
	o.KeyList, o.ColList = targetColumns(&o.SqlStatementGeneratorConfig)
	o.AllColList = append(append([]string{}, o.KeyList...), o.ColList...)
	// Example:
	// update t set b = src.b
	// from ( select ? as a, ? as b
	//        union all select ?, ? ) src
	// where t.a = src.a
	set := make([]string, len(o.ColList))
	for idx, col := range o.ColList {
		set[idx] = fmt.Sprintf("%v = src.%v", col, col)
	}
	where := make([]string, len(o.KeyList))
	for idx, col := range o.KeyList {
		where[idx] = fmt.Sprintf("%v.%v = src.%v", o.OutputTable, col, col)
	}
	o.sqlStmtTemplate = `update <TABLE> set <COL-TXT> from ( <FROM-TXT> ) src where <KEY-TXT>`
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<TABLE>", o.OutputTable, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<COL-TXT>", strings.Join(set, ", "), 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<KEY-TXT>", strings.Join(where, " and "), 1)
	o.Log.Debug("setup UPDATE generator with SQL (<FROM-TXT> pending): ", o.sqlStmtTemplate)
}

func (o *SqlUpdateTxtBatch) InitBatch(batchSize int) {
	if o.previousNumRowsInBatch != batchSize {
		o.sqlStmt = o.sqlStmtTemplate
		o.previousNumRowsInBatch = 0
	}
	o.batchSize = batchSize
	o.rowsInBatch = 0
	o.sqlValues = make([]interface{}, 0, o.batchSize*len(o.AllColList))
}

func (o *SqlUpdateTxtBatch) AddValuesToBatch(values []interface{}) (batchIsFull bool, err error) {
	if o.rowsInBatch >= o.batchSize {
		return true, errors.New("no more rows allowed in UPDATE batch")
	}
	if len(values) != len(o.AllColList) {
		return false, fmt.Errorf("the number of target table columns does not match the number of input values supplied: num supplied = %v; expected = %v: values = %v", len(values), len(o.AllColList), values)
	}
	o.sqlValues = append(o.sqlValues, values...)
	o.rowsInBatch++
	return o.rowsInBatch >= o.batchSize, nil
}

func (o *SqlUpdateTxtBatch) GetValues() []interface{} {
	return o.sqlValues
}

func (o *SqlUpdateTxtBatch) GetStatement() string {
	if o.previousNumRowsInBatch != o.rowsInBatch || o.sqlStmt == o.sqlStmtTemplate {
		allRows := getInlineSelectOfValues(&o.SqlStatementGeneratorConfig, o.rowsInBatch, o.AllColList)
		o.sqlStmt = strings.Replace(o.sqlStmtTemplate, "<FROM-TXT>", allRows.String(), 1)
		o.previousNumRowsInBatch = o.rowsInBatch
	}
	o.Log.Trace("SQL batch UPDATE generated statement: ", o.sqlStmt)
	return o.sqlStmt
}

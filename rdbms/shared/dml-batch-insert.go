package shared

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// SqlInsertTxtBatch implements SqlStmtTxtBatcher
// and is able to generate INSERT statements with batches of rows supplied.
type SqlInsertTxtBatch struct {
	SqlStatementGeneratorConfig // mandatory to be populated.
	sqlCoreCfg
	ColList []string // key columns followed by other columns.
}

// NewInsertGenerator creates a new SqlStmtTxtBatcher for INSERT statements.
// Values supplied to AddValuesToBatch are key columns followed by other columns.
func (g *DmlGeneratorTxtBatch) NewInsertGenerator(cfg *SqlStatementGeneratorConfig) SqlStmtTxtBatcher {
	if err := ValidateSqlStatementGeneratorConfig(cfg); err != nil {
		panic(fmt.Sprintf("invalid INSERT generator config: %v", err))
	}
	cfg.Log.Debug("Creating NewInsertGenerator for ", cfg.OutputTable)
	o := &SqlInsertTxtBatch{SqlStatementGeneratorConfig: *cfg}
	o.setupSqlStatement()
	return o
}

func (o *SqlInsertTxtBatch) setupSqlStatement() {
	keys, others := targetColumns(&o.SqlStatementGeneratorConfig)
	o.ColList = append(keys, others...)
	o.sqlStmtTemplate = `insert into <TABLE> (<TGT-COLS>) values <VALUES>`
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<TABLE>", o.OutputTable, 1)
	o.sqlStmtTemplate = strings.Replace(o.sqlStmtTemplate, "<TGT-COLS>", strings.Join(o.ColList, ","), 1)
	o.Log.Debug("setup INSERT generator with SQL (VALUES pending): ", o.sqlStmtTemplate)
}

func (o *SqlInsertTxtBatch) InitBatch(batchSize int) {
	if o.previousNumRowsInBatch != batchSize { // if we have a new batch size and need to generate SQL...
		o.sqlStmt = o.sqlStmtTemplate
		o.previousNumRowsInBatch = 0
	}
	o.batchSize = batchSize
	o.rowsInBatch = 0
	o.sqlValues = make([]interface{}, 0, o.batchSize*len(o.ColList)) // many values per row in a batch.
}

func (o *SqlInsertTxtBatch) AddValuesToBatch(values []interface{}) (batchIsFull bool, err error) {
	if o.rowsInBatch >= o.batchSize {
		return true, errors.New("no more rows allowed in INSERT batch")
	}
	if len(values) != len(o.ColList) {
		return false, fmt.Errorf("the number of values supplied (%v) does not match the number of table columns (%v)", len(values), len(o.ColList))
	}
	o.sqlValues = append(o.sqlValues, values...)
	o.rowsInBatch++
	return o.rowsInBatch >= o.batchSize, nil
}

func (o *SqlInsertTxtBatch) GetValues() []interface{} {
	return o.sqlValues
}

// GetStatement returns the INSERT for the rows added so far.
// The text is cached while the number of rows in the batch stays the same.
func (o *SqlInsertTxtBatch) GetStatement() string {
	if o.previousNumRowsInBatch != o.rowsInBatch || o.sqlStmt == o.sqlStmtTemplate {
		row := make([]string, len(o.ColList))
		for idx, col := range o.ColList {
			row[idx] = o.bindFor(col)
		}
		rowTxt := fmt.Sprintf("( %v )", strings.Join(row, ","))
		allRows := make([]string, o.rowsInBatch)
		for idx := range allRows {
			allRows[idx] = rowTxt
		}
		o.sqlStmt = strings.Replace(o.sqlStmtTemplate, "<VALUES>", strings.Join(allRows, ","), 1)
		o.previousNumRowsInBatch = o.rowsInBatch
	}
	o.Log.Trace("SQL batch INSERT generated statement: ", o.sqlStmt)
	return o.sqlStmt
}

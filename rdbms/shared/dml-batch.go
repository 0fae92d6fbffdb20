package shared

import (
	"fmt"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/shopspring/decimal"

	c "github.com/relloyd/scdpipe/constants"
	"github.com/relloyd/scdpipe/logger"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

const strBindChar = "?"

// DmlGeneratorTxtBatch generates text batches of DML with positional binds.
// castBinds wraps every bind in CAST(? AS <type>) for engines that cannot infer parameter types.
type DmlGeneratorTxtBatch struct {
	castBinds  bool
	textType   string
	boolAsInt  bool
	typeMapper tabledefinition.Mapper
}

// NewDuckDbDmlGenerator returns the DML dialect for DuckDB warehouses.
func NewDuckDbDmlGenerator() *DmlGeneratorTxtBatch {
	return &DmlGeneratorTxtBatch{castBinds: true, textType: "VARCHAR", typeMapper: tabledefinition.NewDuckDbDataTypeMapper()}
}

// NewSqliteDmlGenerator returns the DML dialect for SQLite warehouses and sources.
func NewSqliteDmlGenerator() *DmlGeneratorTxtBatch {
	return &DmlGeneratorTxtBatch{castBinds: false, textType: "TEXT", boolAsInt: true, typeMapper: tabledefinition.NewSqliteDataTypeMapper()}
}

// NewGenericDmlGenerator is used for read-only source connections.
func NewGenericDmlGenerator() *DmlGeneratorTxtBatch {
	return &DmlGeneratorTxtBatch{castBinds: false, textType: "VARCHAR(4000)"}
}

// BindValue returns the bind placeholder text for col.
func (g *DmlGeneratorTxtBatch) BindValue(col tabledefinition.TableColumn) string {
	if !g.castBinds {
		return strBindChar
	}
	t := strings.TrimSuffix(g.typeMapper.Map(tabledefinition.TableColumn{
		ColName:   col.ColName,
		DataType:  col.DataType,
		DataScale: col.DataScale,
		Nullable:  true,
	}), " NOT NULL")
	return fmt.Sprintf("CAST(%v AS %v)", strBindChar, t)
}

// SelectAsText returns an expression that reads colName back as text.
func (g *DmlGeneratorTxtBatch) SelectAsText(colName string) string {
	return fmt.Sprintf("CAST(%v AS %v)", colName, g.textType)
}

// DriverValue converts a canonical record value into a database/sql argument.
func (g *DmlGeneratorTxtBatch) DriverValue(col tabledefinition.TableColumn, v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return x.StringFixed(col.DataScale)
	case time.Time:
		if col.DataType == tabledefinition.DataTypeDate {
			return x.UTC().Format(c.DateFormat)
		}
		return x.UTC().Format(c.TimestampFormat)
	case bool:
		if g.boolAsInt {
			if x {
				return int64(1)
			}
			return int64(0)
		}
		return x
	}
	return v
}

type SqlStatementGeneratorConfig struct {
	Log             logger.Logger
	OutputTable     string
	TargetKeyCols   *om.OrderedMap    // ordered map of: key = record field name; value = target table column name
	TargetOtherCols *om.OrderedMap    // ordered map of: key = record field name; value = target table column name
	ColumnBinds     map[string]string // target column name to bind text; "?" when absent
}

type sqlCoreCfg struct {
	sqlStmt                string
	sqlStmtTemplate        string
	sqlValues              []interface{} // slice to hold data values for all rows in batch
	batchSize              int
	rowsInBatch            int
	previousNumRowsInBatch int
}

func (cfg *SqlStatementGeneratorConfig) bindFor(col string) string {
	if b, ok := cfg.ColumnBinds[col]; ok && b != "" {
		return b
	}
	return strBindChar
}

// getInlineSelectOfValues renders numRows rows of binds as
// "select ? as a, ? as b union all select ?, ?".
func getInlineSelectOfValues(cfg *SqlStatementGeneratorConfig, numRows int, cols []string) *strings.Builder {
	allRows := strings.Builder{}
	for rowIdx := 0; rowIdx < numRows; rowIdx++ {
		row := make([]string, len(cols))
		for idy, col := range cols {
			if rowIdx == 0 {
				row[idy] = fmt.Sprintf("%v as %v", cfg.bindFor(col), col)
			} else {
				row[idy] = cfg.bindFor(col)
			}
		}
		if rowIdx == 0 {
			allRows.WriteString("select " + strings.Join(row, ", "))
		} else {
			allRows.WriteString(" union all select " + strings.Join(row, ", "))
		}
	}
	return &allRows
}

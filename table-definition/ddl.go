package tabledefinition

import (
	"fmt"
	"strings"

	c "github.com/relloyd/scdpipe/constants"
)

// GenerateTableDDL returns the statements that create table t if it does not exist,
// followed by an index on the business key and active flag where the mapper supports it.
func GenerateTableDDL(t *TableDefinition, mapper Mapper) []string {
	pre, skDef := mapper.SurrogateKey(t.TableName, t.SurrogateKey())
	cols := make([]string, 0)
	cols = append(cols, fmt.Sprintf("%v %v", t.SurrogateKey(), skDef))
	for _, col := range t.DataColumns() {
		cols = append(cols, fmt.Sprintf("%v %v", col.ColName, mapper.Map(col)))
	}
	retval := append([]string{}, pre...)
	retval = append(retval, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %v (\n\t%v\n)", t.TableName, strings.Join(cols, ",\n\t")))
	if !mapper.IndexBusinessKeys() {
		return retval
	}
	retval = append(retval, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %v_bk_idx ON %v (%v, %v)",
		t.TableName, t.TableName, strings.Join(t.KeyNames(), ", "), c.ColumnNameIsActive))
	return retval
}

// GeneratePlainTableDDL returns the statement that creates a table without history columns.
// primaryKey may be empty.
func GeneratePlainTableDDL(tableName string, cols []TableColumn, primaryKey []string, mapper Mapper) string {
	defs := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		defs = append(defs, fmt.Sprintf("%v %v", col.ColName, mapper.Map(col)))
	}
	if len(primaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%v)", strings.Join(primaryKey, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %v (\n\t%v\n)", tableName, strings.Join(defs, ",\n\t"))
}

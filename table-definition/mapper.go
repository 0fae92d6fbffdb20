package tabledefinition

import (
	"fmt"

	"github.com/relloyd/scdpipe/constants"
)

// Mapper converts logical column types into warehouse DDL.
type Mapper interface {
	Map(col TableColumn) string
	SurrogateKey(tableName string, colName string) (preStatements []string, colDefinition string)
	IndexBusinessKeys() bool
}

// GetMapper returns the Mapper for the warehouse connection type.
func GetMapper(connectionType string) (Mapper, error) {
	switch connectionType {
	case constants.ConnectionTypeDuckDb:
		return NewDuckDbDataTypeMapper(), nil
	case constants.ConnectionTypeSqlite:
		return NewSqliteDataTypeMapper(), nil
	}
	return nil, fmt.Errorf("unsupported warehouse connection type %q", connectionType)
}

type sanitiserFuncT func(targetType string, col TableColumn) string

type dataTypeLink struct {
	SourceDataType DataType
	TargetDataType string
	SanitiserFunc  sanitiserFuncT
}

type dataTypeMap struct {
	mapTypes      map[DataType]string
	mapSanitisers map[DataType]sanitiserFuncT
	fnSurrogate   func(tableName string, colName string) ([]string, string)
	withIndex     bool
}

func newDataTypeMapper(types []dataTypeLink, withIndex bool, fnSurrogate func(string, string) ([]string, string)) dataTypeMap {
	dtm := dataTypeMap{
		mapTypes:      make(map[DataType]string),
		mapSanitisers: make(map[DataType]sanitiserFuncT),
		fnSurrogate:   fnSurrogate,
		withIndex:     withIndex,
	}
	for _, row := range types {
		dtm.mapTypes[row.SourceDataType] = row.TargetDataType
		dtm.mapSanitisers[row.SourceDataType] = row.SanitiserFunc
	}
	return dtm
}

// Map returns the column definition text excluding the column name, e.g. "DECIMAL(18,4) NOT NULL".
func (o dataTypeMap) Map(col TableColumn) string {
	t := o.mapTypes[col.DataType]
	if fn := o.mapSanitisers[col.DataType]; fn != nil {
		t = fn(t, col)
	}
	if !col.Nullable {
		t += " NOT NULL"
	}
	return t
}

func (o dataTypeMap) SurrogateKey(tableName string, colName string) ([]string, string) {
	return o.fnSurrogate(tableName, colName)
}

// IndexBusinessKeys is false for DuckDB, which rewrites updates of indexed rows as delete plus insert.
func (o dataTypeMap) IndexBusinessKeys() bool {
	return o.withIndex
}

// DuckDbDataTypeMapping stores decimals as exact DECIMAL and dates natively.
var DuckDbDataTypeMapping = []dataTypeLink{
	{SourceDataType: DataTypeString, TargetDataType: "VARCHAR"},
	{SourceDataType: DataTypeInteger, TargetDataType: "BIGINT"},
	{SourceDataType: DataTypeDecimal, TargetDataType: "DECIMAL", SanitiserFunc: sanitisePrecisionScale},
	{SourceDataType: DataTypeDate, TargetDataType: "DATE"},
	{SourceDataType: DataTypeTimestamp, TargetDataType: "TIMESTAMP"},
	{SourceDataType: DataTypeBoolean, TargetDataType: "BOOLEAN"},
}

// SqliteDataTypeMapping stores decimals and dates as TEXT so values round trip exactly.
var SqliteDataTypeMapping = []dataTypeLink{
	{SourceDataType: DataTypeString, TargetDataType: "TEXT"},
	{SourceDataType: DataTypeInteger, TargetDataType: "INTEGER"},
	{SourceDataType: DataTypeDecimal, TargetDataType: "TEXT"},
	{SourceDataType: DataTypeDate, TargetDataType: "TEXT"},
	{SourceDataType: DataTypeTimestamp, TargetDataType: "TEXT"},
	{SourceDataType: DataTypeBoolean, TargetDataType: "INTEGER"},
}

func NewDuckDbDataTypeMapper() Mapper {
	return newDataTypeMapper(DuckDbDataTypeMapping, false, func(tableName string, colName string) ([]string, string) {
		seq := fmt.Sprintf("%v_seq", colName)
		return []string{fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %v START 1", seq)},
			fmt.Sprintf("BIGINT DEFAULT nextval('%v') NOT NULL", seq)
	})
}

func NewSqliteDataTypeMapper() Mapper {
	return newDataTypeMapper(SqliteDataTypeMapping, true, func(tableName string, colName string) ([]string, string) {
		return nil, "INTEGER PRIMARY KEY"
	})
}

func sanitisePrecisionScale(targetType string, col TableColumn) string {
	return fmt.Sprintf("%v(18,%v)", targetType, col.DataScale)
}

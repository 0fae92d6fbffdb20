package tabledefinition

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/shopspring/decimal"

	c "github.com/relloyd/scdpipe/constants"
	h "github.com/relloyd/scdpipe/helper"
)

// DataType is the logical type of a warehouse column.
type DataType int

const (
	DataTypeString DataType = iota
	DataTypeInteger
	DataTypeDecimal
	DataTypeDate
	DataTypeTimestamp
	DataTypeBoolean
)

func (d DataType) String() string {
	switch d {
	case DataTypeString:
		return "string"
	case DataTypeInteger:
		return "integer"
	case DataTypeDecimal:
		return "decimal"
	case DataTypeDate:
		return "date"
	case DataTypeTimestamp:
		return "timestamp"
	case DataTypeBoolean:
		return "boolean"
	}
	return "unknown"
}

// moneyScale is the number of decimal places kept for amounts, revenues and rates.
const moneyScale = 4

// TableColumn is the metadata for one warehouse column.
type TableColumn struct {
	ColName   string
	DataType  DataType
	DataScale int32
	Nullable  bool
}

// Normalise converts v into the canonical Go value stored for this column:
// decimals are rounded to the column scale, dates truncated to the day and timestamps to the second.
func (col TableColumn) Normalise(v interface{}) (interface{}, error) {
	if v == nil {
		if !col.Nullable {
			return nil, fmt.Errorf("column %q does not allow NULL", col.ColName)
		}
		return nil, nil
	}
	switch col.DataType {
	case DataTypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case DataTypeInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		}
	case DataTypeDecimal:
		if d, ok := v.(decimal.Decimal); ok {
			return d.Round(col.DataScale), nil
		}
	case DataTypeDate:
		if t, ok := v.(time.Time); ok {
			return h.TruncateToDay(t), nil
		}
	case DataTypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Truncate(time.Second), nil
		}
	case DataTypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("column %q of type %v cannot hold value %v of type %T", col.ColName, col.DataType, v, v)
}

// ParseText converts the text form of a stored value back into its canonical Go value.
// valid is false for NULL.
func (col TableColumn) ParseText(s string, valid bool) (interface{}, error) {
	if !valid {
		return col.Normalise(nil)
	}
	var v interface{}
	var err error
	switch col.DataType {
	case DataTypeString:
		v = s
	case DataTypeInteger:
		v, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case DataTypeDecimal:
		v, err = decimal.NewFromString(strings.TrimSpace(s))
	case DataTypeDate:
		v, err = h.ParseDate(s)
	case DataTypeTimestamp:
		v, err = h.ParseTimestamp(s)
	case DataTypeBoolean:
		v, err = strconv.ParseBool(strings.TrimSpace(s))
	default:
		err = fmt.Errorf("unsupported data type %v", col.DataType)
	}
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", col.ColName, err)
	}
	return col.Normalise(v)
}

// TableDefinition describes one historized warehouse table.
type TableDefinition struct {
	TableName      string
	KeyColumns     []TableColumn
	TrackedColumns []TableColumn
}

// SurrogateKey returns the name of the surrogate key column, <table>_sk.
func (t *TableDefinition) SurrogateKey() string {
	return t.TableName + c.SurrogateKeySuffix
}

// KeyNames returns the business key column names in order.
func (t *TableDefinition) KeyNames() []string {
	return columnNames(t.KeyColumns)
}

// TrackedNames returns the tracked attribute column names in order.
func (t *TableDefinition) TrackedNames() []string {
	return columnNames(t.TrackedColumns)
}

// KeyColumnsMap returns an ordered map of business key name to the same name, for record comparisons.
func (t *TableDefinition) KeyColumnsMap() *om.OrderedMap {
	return h.StringSliceToOrderedMap(t.KeyNames())
}

// TrackedColumnsMap returns an ordered map of tracked column name to the same name, for record comparisons.
func (t *TableDefinition) TrackedColumnsMap() *om.OrderedMap {
	return h.StringSliceToOrderedMap(t.TrackedNames())
}

// HistoryColumns are the SCD2 bookkeeping columns present on every warehouse table.
func HistoryColumns() []TableColumn {
	return []TableColumn{
		{ColName: c.ColumnNameEffectiveStartDate, DataType: DataTypeDate},
		{ColName: c.ColumnNameEffectiveEndDate, DataType: DataTypeDate, Nullable: true},
		{ColName: c.ColumnNameIsActive, DataType: DataTypeBoolean},
	}
}

// DataColumns returns business key, tracked and history columns, in DDL order, without the surrogate key.
func (t *TableDefinition) DataColumns() []TableColumn {
	retval := make([]TableColumn, 0, len(t.KeyColumns)+len(t.TrackedColumns)+3)
	retval = append(retval, t.KeyColumns...)
	retval = append(retval, t.TrackedColumns...)
	retval = append(retval, HistoryColumns()...)
	return retval
}

// Column finds a column by name among the data columns.
func (t *TableDefinition) Column(name string) (TableColumn, bool) {
	for _, col := range t.DataColumns() {
		if col.ColName == name {
			return col, true
		}
	}
	return TableColumn{}, false
}

func columnNames(cols []TableColumn) []string {
	retval := make([]string, len(cols))
	for i, col := range cols {
		retval[i] = col.ColName
	}
	return retval
}

func money(name string, nullable bool) TableColumn {
	return TableColumn{ColName: name, DataType: DataTypeDecimal, DataScale: moneyScale, Nullable: nullable}
}

// UserProfiling holds one version per user.
var UserProfiling = &TableDefinition{
	TableName: "user_profiling",
	KeyColumns: []TableColumn{
		{ColName: "user_id", DataType: DataTypeInteger},
	},
	TrackedColumns: []TableColumn{
		{ColName: "name", DataType: DataTypeString, Nullable: true},
		{ColName: "email", DataType: DataTypeString},
		{ColName: "phone", DataType: DataTypeString, Nullable: true},
		{ColName: "first_transaction_date", DataType: DataTypeTimestamp, Nullable: true},
		{ColName: "last_transaction_date", DataType: DataTypeTimestamp, Nullable: true},
		{ColName: "total_transactions", DataType: DataTypeInteger},
		money("total_spent", false),
		{ColName: "last_membership", DataType: DataTypeString, Nullable: true},
		{ColName: "last_membership_expiry_date", DataType: DataTypeDate, Nullable: true},
		{ColName: "basic_membership_duration_days", DataType: DataTypeInteger},
		{ColName: "premium_membership_duration_days", DataType: DataTypeInteger},
		{ColName: "last_activity", DataType: DataTypeString, Nullable: true},
		{ColName: "last_activity_date", DataType: DataTypeDate, Nullable: true},
		money("discount_rate", true),
	},
}

// TransactionSummary holds one version per user and period.
var TransactionSummary = &TableDefinition{
	TableName: "transaction_summary",
	KeyColumns: []TableColumn{
		{ColName: "user_id", DataType: DataTypeInteger},
		{ColName: "period", DataType: DataTypeString},
	},
	TrackedColumns: []TableColumn{
		{ColName: "membership_type", DataType: DataTypeString},
		{ColName: "total_transactions", DataType: DataTypeInteger},
		money("total_amount", false),
		money("mdr_revenue", false),
	},
}

// MembershipSummary holds one version per membership type.
var MembershipSummary = &TableDefinition{
	TableName: "membership_summary",
	KeyColumns: []TableColumn{
		{ColName: "membership_type", DataType: DataTypeString},
	},
	TrackedColumns: []TableColumn{
		{ColName: "total_transactions", DataType: DataTypeInteger},
		money("total_amount", false),
		money("mdr_revenue", false),
	},
}

// WarehouseTables returns every historized table in merge order.
func WarehouseTables() []*TableDefinition {
	return []*TableDefinition{UserProfiling, TransactionSummary, MembershipSummary}
}

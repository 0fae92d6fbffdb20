package helper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/shopspring/decimal"

	"github.com/relloyd/scdpipe/constants"
)

// CsvToStringSliceTrimSpaces converts a string of the form 'f1, f2, f3' into a slice of
// values with leading and trailing spaces removed. Empty tokens are dropped.
func CsvToStringSliceTrimSpaces(s string) []string {
	retval := make([]string, 0)
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			retval = append(retval, t)
		}
	}
	return retval
}

// StringSliceToOrderedMap adds each value in s to an ordered map with key and value set to the value in s.
func StringSliceToOrderedMap(s []string) *om.OrderedMap {
	retval := om.NewOrderedMap()
	for _, v := range s {
		retval.Set(v, v)
	}
	return retval
}

// OrderedMapValuesToStringSlice returns the values of o in insertion order.
// All values are expected to be strings.
func OrderedMapValuesToStringSlice(o *om.OrderedMap) []string {
	retval := make([]string, 0, o.Len())
	iter := o.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Value.(string))
	}
	return retval
}

// GetStringFromInterface converts a database or record value to text.
// Times are written in UTC using the timestamp format, or the date format when they fall on midnight.
// NULL becomes "" and ok is false.
func GetStringFromInterface(input interface{}) (retval string, ok bool, err error) {
	ok = true
	switch v := input.(type) {
	case nil:
		ok = false
	case string:
		retval = v
	case []byte:
		retval = string(v)
	case int:
		retval = strconv.Itoa(v)
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		retval = fmt.Sprintf("%d", v)
	case float32:
		retval = strconv.FormatFloat(float64(v), 'f', -1, 32) // 'f' keeps all decimal places without an exponent
	case float64:
		retval = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		retval = strconv.FormatBool(v)
	case decimal.Decimal:
		retval = v.String()
	case time.Time:
		u := v.UTC()
		if u.Equal(TruncateToDay(u)) {
			retval = u.Format(constants.DateFormat)
		} else {
			retval = u.Format(constants.TimestampFormat)
		}
	default:
		err = fmt.Errorf("unhandled type %T while converting value %v to string", input, input)
	}
	return
}

// GenerateStringOfColsEqualsBinds returns "a = ?, b = ?" style text using the supplied bind text per column.
func GenerateStringOfColsEqualsBinds(colList []string, binds []string, separator string) string {
	s := make([]string, len(colList))
	for idx, col := range colList {
		s[idx] = fmt.Sprintf("%s = %s", col, binds[idx])
	}
	return strings.Join(s, separator)
}

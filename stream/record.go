package stream

import (
	"fmt"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/shopspring/decimal"

	h "github.com/relloyd/scdpipe/helper"
)

// Record holds typed column values for one candidate or warehouse row.
// Supported values are nil (NULL), string, int64, bool, decimal.Decimal and time.Time.
type Record struct {
	data map[string]interface{}
}

// NewRecord creates a new Record and returns it by value; the map inside is shared by copies.
func NewRecord() Record {
	return Record{data: make(map[string]interface{})}
}

func (sr Record) SetData(name string, value interface{}) {
	sr.data[name] = value
}

func (sr Record) GetData(name string) interface{} {
	val, ok := sr.data[name]
	if !ok {
		panic(fmt.Sprintf("invalid key name %q supplied while trying to fetch value from record: %v", name, sr.data))
	}
	return val
}

// GetDataAsString returns the text form of the value for name; NULL is "<nil>".
func (sr Record) GetDataAsString(name string) string {
	s, ok, err := h.GetStringFromInterface(sr.GetData(name))
	if err != nil {
		panic(err)
	}
	if !ok {
		return "<nil>"
	}
	return s
}

// GetDataKeysAsSlice builds a slice of strings containing the values found for each of the supplied keys.
func (sr Record) GetDataKeysAsSlice(keys []string) []string {
	retval := make([]string, 0, len(keys))
	for _, k := range keys {
		retval = append(retval, sr.GetDataAsString(k))
	}
	return retval
}

// GetDataKeysAsString joins the values of keys with "|" for use as a business key.
func (sr Record) GetDataKeysAsString(keys []string) string {
	return strings.Join(sr.GetDataKeysAsSlice(keys), "|")
}

// CompareByKeyFields compares sr with targetRec using the key fields in joinKeys, where each
// key in joinKeys is a field in sr and its value is the field in targetRec.
// It returns -1 if sr sorts first, 0 if the keys match and 1 if targetRec sorts first.
func (sr Record) CompareByKeyFields(targetRec Record, joinKeys *om.OrderedMap) (retval int) {
	iter := joinKeys.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = CompareValues(sr.GetData(kv.Key.(string)), targetRec.GetData(kv.Value.(string)))
		if retval != 0 { // exit early as we have found a difference.
			break
		}
	}
	return
}

// DataIsEqual compares sr with targetRec field by field using the pairs in compareKeys
// (compareKeys["X"]="Y" checks sr["X"] == targetRec["Y"]).
// It returns false and the name of the first differing field when they are not equal.
func (sr Record) DataIsEqual(targetRec Record, compareKeys *om.OrderedMap) (bool, string) {
	iter := compareKeys.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		k := kv.Key.(string)
		if !ValuesEqual(sr.GetData(k), targetRec.GetData(kv.Value.(string))) {
			return false, k
		}
	}
	return true, ""
}

// ValuesEqual compares two typed values.
// Decimals compare by exact value (1.50 == 1.5), times by instant, NULL only equals NULL.
func ValuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	panic(fmt.Sprintf("unsupported record value type %T", a))
}

// CompareValues orders two values of the same type; NULL sorts first.
// Values of different types are ordered by their text form.
func CompareValues(a, b interface{}) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			return compareOrdered(av < bv, av > bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case decimal.Decimal:
		if bv, ok := b.(decimal.Decimal); ok {
			return av.Cmp(bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return compareOrdered(av.Before(bv), av.After(bv))
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return compareOrdered(!av && bv, av && !bv)
		}
	}
	as, _, _ := h.GetStringFromInterface(a)
	bs, _, _ := h.GetStringFromInterface(b)
	return strings.Compare(as, bs)
}

func compareOrdered(less, greater bool) int {
	if less {
		return -1
	}
	if greater {
		return 1
	}
	return 0
}

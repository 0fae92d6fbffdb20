package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic"
)

// rowFilter keeps raw rows for which a JSON Logic rule returns true.
type rowFilter struct {
	rule   string
	result bytes.Buffer
}

// newRowFilter validates rule and returns a filter; an empty rule returns nil.
func newRowFilter(entity string, rule string) (*rowFilter, error) {
	if strings.TrimSpace(rule) == "" {
		return nil, nil
	}
	if !jsonlogic.IsValid(strings.NewReader(rule)) {
		return nil, fmt.Errorf("invalid JSON Logic filter for %v: %v", entity, rule)
	}
	return &rowFilter{rule: rule}, nil
}

// keep applies the rule to row, where row maps source column names to text values or nil.
func (f *rowFilter) keep(row map[string]interface{}) (bool, error) {
	if f == nil {
		return true, nil
	}
	data, err := json.Marshal(row)
	if err != nil {
		return false, fmt.Errorf("error marshalling data before applying JSON logic: %v", err)
	}
	f.result.Reset()
	if err := jsonlogic.Apply(strings.NewReader(f.rule), bytes.NewReader(data), &f.result); err != nil {
		return false, fmt.Errorf("error applying JSON logic: %v", err)
	}
	return strings.TrimSpace(f.result.String()) == "true", nil
}

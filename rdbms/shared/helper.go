package shared

import (
	"errors"

	h "github.com/relloyd/scdpipe/helper"
)

// ValidateSqlStatementGeneratorConfig checks the parts every DML generator needs.
func ValidateSqlStatementGeneratorConfig(cfg *SqlStatementGeneratorConfig) error {
	if cfg.Log == nil {
		return errors.New("missing logger")
	}
	if cfg.OutputTable == "" {
		return errors.New("missing output table name")
	}
	if cfg.TargetKeyCols == nil || cfg.TargetKeyCols.Len() == 0 {
		return errors.New("missing target key columns")
	}
	if cfg.TargetOtherCols == nil {
		return errors.New("missing target columns")
	}
	return nil
}

// targetColumns returns the target column names of key columns and other columns.
func targetColumns(cfg *SqlStatementGeneratorConfig) (keys []string, others []string) {
	return h.OrderedMapValuesToStringSlice(cfg.TargetKeyCols), h.OrderedMapValuesToStringSlice(cfg.TargetOtherCols)
}

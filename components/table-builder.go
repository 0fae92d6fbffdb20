package components

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	c "github.com/relloyd/scdpipe/constants"
	e "github.com/relloyd/scdpipe/etlerror"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/snapshot"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

// BuildFunc derives the candidates of one warehouse table from a snapshot.
type BuildFunc func(log logger.Logger, snap *snapshot.Snapshot) ([]Candidate, error)

// TableBuilder pairs a warehouse table with the function that builds its candidates.
type TableBuilder struct {
	Table *tabledefinition.TableDefinition
	Build BuildFunc
}

// DefaultTableBuilders returns the builders for every warehouse table.
// period is one of month or day and sets the grain of the transaction summary.
func DefaultTableBuilders(period string) ([]TableBuilder, error) {
	periodFormat, err := periodLayout(period)
	if err != nil {
		return nil, err
	}
	return []TableBuilder{
		{Table: tabledefinition.UserProfiling, Build: BuildUserProfiles},
		{Table: tabledefinition.TransactionSummary, Build: func(log logger.Logger, snap *snapshot.Snapshot) ([]Candidate, error) {
			return BuildTransactionSummaries(log, snap, periodFormat)
		}},
		{Table: tabledefinition.MembershipSummary, Build: BuildMembershipSummaries},
	}, nil
}

func periodLayout(period string) (string, error) {
	switch strings.ToLower(period) {
	case c.SummaryPeriodMonth, "":
		return c.PeriodFormatMonth, nil
	case c.SummaryPeriodDay:
		return c.DateFormat, nil
	}
	return "", fmt.Errorf("unsupported summary period %q, expected %q or %q", period, c.SummaryPeriodMonth, c.SummaryPeriodDay)
}

// RunBuilders runs every builder in parallel and returns the sorted candidates per table name.
// The first failure cancels the rest; errors that are neither a BuildError nor fatal become a BuildError.
func RunBuilders(ctx context.Context, log logger.Logger, builders []TableBuilder, snap *snapshot.Snapshot) (map[string][]Candidate, error) {
	var mu sync.Mutex
	retval := make(map[string][]Candidate, len(builders))
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range builders {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			candidates, err := b.Build(log, snap)
			if err != nil {
				var be *e.BuildError
				if errors.As(err, &be) || e.IsFatal(err) {
					return err
				}
				return &e.BuildError{Table: b.Table.TableName, Err: err}
			}
			SortCandidates(candidates, b.Table.KeyColumnsMap())
			log.Debug("built ", len(candidates), " candidates for table ", b.Table.TableName)
			mu.Lock()
			retval[b.Table.TableName] = candidates
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return retval, nil
}

func newBuildError(t *tabledefinition.TableDefinition, key interface{}, format string, args ...interface{}) error {
	return &e.BuildError{Table: t.TableName, Key: fmt.Sprintf("%v", key), Err: fmt.Errorf(format, args...)}
}

package components

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	c "github.com/relloyd/scdpipe/constants"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/snapshot"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

type summaryKey struct {
	userID int64
	period string
}

func (k summaryKey) String() string {
	return fmt.Sprintf("%v|%v", k.userID, k.period)
}

type summaryTotals struct {
	count   int64
	amount  decimal.Decimal
	revenue decimal.Decimal
	latest  *snapshot.Transaction
	latestT string // membership type of the latest transaction
}

func (s *summaryTotals) add(txn *snapshot.Transaction, mt string, revenue decimal.Decimal) {
	s.count++
	s.amount = s.amount.Add(txn.Amount)
	s.revenue = s.revenue.Add(revenue)
	if s.latest == nil || txn.Timestamp.After(s.latest.Timestamp) ||
		(txn.Timestamp.Equal(s.latest.Timestamp) && txn.TransactionID > s.latest.TransactionID) {
		s.latest = txn
		s.latestT = mt
	}
}

// classifiedTransaction is a transaction with the membership type covering it and its MDR revenue.
type classifiedTransaction struct {
	txn            *snapshot.Transaction
	membershipType string
	revenue        decimal.Decimal
}

// classifyTransactions finds the covering membership of every transaction and computes its revenue.
// Transactions of unknown users and covering types without a rate are build errors of table t.
func classifyTransactions(t *tabledefinition.TableDefinition, idx *snapshotIndex, snap *snapshot.Snapshot) ([]classifiedTransaction, error) {
	retval := make([]classifiedTransaction, 0, len(snap.Transactions))
	for i := range snap.Transactions {
		txn := &snap.Transactions[i]
		if _, ok := idx.users[txn.UserID]; !ok {
			return nil, newBuildError(t, txn.TransactionID, "transaction references unknown user %v", txn.UserID)
		}
		mt := c.MembershipTypeNone
		revenue := decimal.Zero
		if m := coveringMembership(idx.memberships[txn.UserID], txn.Timestamp); m != nil {
			mt = membershipType(m.MembershipType)
			rate, ok := idx.rate(mt)
			if !ok {
				return nil, newBuildError(t, txn.TransactionID, "%v", &missingRateError{membershipType: mt})
			}
			revenue = txn.Amount.Mul(rate).Div(hundred)
		}
		retval = append(retval, classifiedTransaction{txn: txn, membershipType: mt, revenue: revenue})
	}
	return retval, nil
}

// BuildTransactionSummaries derives one transaction_summary candidate per user and period,
// where periodFormat is the time layout of the period column.
// Users without transactions produce no candidate.
func BuildTransactionSummaries(log logger.Logger, snap *snapshot.Snapshot, periodFormat string) ([]Candidate, error) {
	t := tabledefinition.TransactionSummary
	idx, err := newSnapshotIndex(snap)
	if err != nil {
		return nil, err
	}
	classified, err := classifyTransactions(t, idx, snap)
	if err != nil {
		return nil, err
	}
	totals := make(map[summaryKey]*summaryTotals)
	for _, ct := range classified {
		k := summaryKey{userID: ct.txn.UserID, period: ct.txn.Timestamp.UTC().Format(periodFormat)}
		s, ok := totals[k]
		if !ok {
			s = &summaryTotals{amount: decimal.Zero, revenue: decimal.Zero}
			totals[k] = s
		}
		s.add(ct.txn, ct.membershipType, ct.revenue)
	}
	keys := make([]summaryKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].userID != keys[j].userID {
			return keys[i].userID < keys[j].userID
		}
		return keys[i].period < keys[j].period
	})
	retval := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		s := totals[k]
		cand, err := NewCandidate(t, map[string]interface{}{
			"user_id":            k.userID,
			"period":             k.period,
			"membership_type":    s.latestT,
			"total_transactions": s.count,
			"total_amount":       s.amount,
			"mdr_revenue":        s.revenue,
		})
		if err != nil {
			return nil, newBuildError(t, k.String(), "%v", err)
		}
		retval = append(retval, cand)
	}
	log.Debug("built ", len(retval), " transaction summaries")
	return retval, nil
}

// BuildMembershipSummaries derives one membership_summary candidate per membership type
// that covers at least one transaction.
func BuildMembershipSummaries(log logger.Logger, snap *snapshot.Snapshot) ([]Candidate, error) {
	t := tabledefinition.MembershipSummary
	idx, err := newSnapshotIndex(snap)
	if err != nil {
		return nil, err
	}
	classified, err := classifyTransactions(t, idx, snap)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]*summaryTotals)
	for _, ct := range classified {
		if ct.membershipType == c.MembershipTypeNone {
			continue
		}
		s, ok := totals[ct.membershipType]
		if !ok {
			s = &summaryTotals{amount: decimal.Zero, revenue: decimal.Zero}
			totals[ct.membershipType] = s
		}
		s.add(ct.txn, ct.membershipType, ct.revenue)
	}
	types := make([]string, 0, len(totals))
	for k := range totals {
		types = append(types, k)
	}
	sort.Strings(types)
	retval := make([]Candidate, 0, len(types))
	for _, mt := range types {
		s := totals[mt]
		cand, err := NewCandidate(t, map[string]interface{}{
			"membership_type":    mt,
			"total_transactions": s.count,
			"total_amount":       s.amount,
			"mdr_revenue":        s.revenue,
		})
		if err != nil {
			return nil, newBuildError(t, mt, "%v", err)
		}
		retval = append(retval, cand)
	}
	log.Debug("built ", len(retval), " membership summaries")
	return retval, nil
}

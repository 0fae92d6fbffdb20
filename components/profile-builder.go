package components

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	c "github.com/relloyd/scdpipe/constants"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/snapshot"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

// BuildUserProfiles derives one user_profiling candidate per user in the snapshot.
// The discount rate is that of the user's last membership, NULL without one.
func BuildUserProfiles(log logger.Logger, snap *snapshot.Snapshot) ([]Candidate, error) {
	t := tabledefinition.UserProfiling
	idx, err := newSnapshotIndex(snap)
	if err != nil {
		return nil, err
	}
	userIDs := make([]int64, 0, len(idx.users))
	for id := range idx.users {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	retval := make([]Candidate, 0, len(userIDs))
	for _, id := range userIDs {
		u := idx.users[id]
		values := map[string]interface{}{
			"user_id": u.UserID,
			"name":    optionalString(u.Name),
			"email":   u.Email,
			"phone":   optionalString(u.Phone),
		}
		addTransactionFacts(values, idx.transactions[id])
		if err := addMembershipFacts(values, idx, idx.memberships[id]); err != nil {
			return nil, newBuildError(t, id, "%v", err)
		}
		addActivityFacts(values, idx.activities[id])
		cand, err := NewCandidate(t, values)
		if err != nil {
			return nil, newBuildError(t, id, "%v", err)
		}
		retval = append(retval, cand)
	}
	log.Debug("built ", len(retval), " user profiles")
	return retval, nil
}

func addTransactionFacts(values map[string]interface{}, txns []*snapshot.Transaction) {
	var first, last *time.Time
	total := decimal.Zero
	for _, txn := range txns {
		ts := txn.Timestamp
		if first == nil || ts.Before(*first) {
			first = &ts
		}
		if last == nil || ts.After(*last) {
			last = &ts
		}
		total = total.Add(txn.Amount)
	}
	values["first_transaction_date"] = optionalTime(first)
	values["last_transaction_date"] = optionalTime(last)
	values["total_transactions"] = int64(len(txns))
	values["total_spent"] = total
}

func addMembershipFacts(values map[string]interface{}, idx *snapshotIndex, memberships []*snapshot.MembershipPurchase) error {
	var lastMembership *snapshot.MembershipPurchase
	var basicDays, premiumDays int64
	for _, m := range memberships {
		if lastMembership == nil || laterMembership(m, lastMembership) {
			lastMembership = m
		}
		switch membershipType(m.MembershipType) {
		case c.MembershipTypeBasic:
			basicDays += h.DaysBetween(m.PurchaseDate, m.ExpiryDate)
		case c.MembershipTypePremium:
			premiumDays += h.DaysBetween(m.PurchaseDate, m.ExpiryDate)
		}
	}
	values["basic_membership_duration_days"] = basicDays
	values["premium_membership_duration_days"] = premiumDays
	if lastMembership == nil {
		values["last_membership"] = nil
		values["last_membership_expiry_date"] = nil
		values["discount_rate"] = nil
		return nil
	}
	mt := membershipType(lastMembership.MembershipType)
	rate, ok := idx.rate(mt)
	if !ok {
		return &missingRateError{membershipType: mt}
	}
	values["last_membership"] = mt
	values["last_membership_expiry_date"] = lastMembership.ExpiryDate
	values["discount_rate"] = rate
	return nil
}

func addActivityFacts(values map[string]interface{}, activities []*snapshot.Activity) {
	var latest *snapshot.Activity
	for _, a := range activities {
		if latest == nil || a.ActivityDate.After(latest.ActivityDate) ||
			(a.ActivityDate.Equal(latest.ActivityDate) && a.ActivityID > latest.ActivityID) {
			latest = a
		}
	}
	if latest == nil {
		values["last_activity"] = nil
		values["last_activity_date"] = nil
		return
	}
	values["last_activity"] = latest.ActivityType
	values["last_activity_date"] = latest.ActivityDate
}

type missingRateError struct {
	membershipType string
}

func (e *missingRateError) Error() string {
	return "no merchant discount rate for membership type " + e.membershipType
}

func optionalString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func optionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

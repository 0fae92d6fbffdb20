package components

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	e "github.com/relloyd/scdpipe/etlerror"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/snapshot"
)

var hundred = decimal.NewFromInt(100)

// membershipType returns the lower case membership type used in joins and outputs.
func membershipType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// laterMembership reports whether a should win over b: latest expiry, then latest purchase, then membership id.
func laterMembership(a, b *snapshot.MembershipPurchase) bool {
	if !a.ExpiryDate.Equal(b.ExpiryDate) {
		return a.ExpiryDate.After(b.ExpiryDate)
	}
	if !a.PurchaseDate.Equal(b.PurchaseDate) {
		return a.PurchaseDate.After(b.PurchaseDate)
	}
	return a.MembershipID > b.MembershipID
}

// coveringMembership returns the membership whose [purchase, expiry] days contain ts.
// When several do, the one with the latest expiry wins.
func coveringMembership(memberships []*snapshot.MembershipPurchase, ts time.Time) *snapshot.MembershipPurchase {
	day := h.TruncateToDay(ts)
	var retval *snapshot.MembershipPurchase
	for _, m := range memberships {
		if day.Before(h.TruncateToDay(m.PurchaseDate)) || day.After(h.TruncateToDay(m.ExpiryDate)) {
			continue
		}
		if retval == nil || laterMembership(m, retval) {
			retval = m
		}
	}
	return retval
}

// snapshotIndex holds lookups shared by the builders.
type snapshotIndex struct {
	users        map[int64]*snapshot.User
	memberships  map[int64][]*snapshot.MembershipPurchase
	transactions map[int64][]*snapshot.Transaction
	activities   map[int64][]*snapshot.Activity
	rates        map[string]decimal.Decimal
}

// newSnapshotIndex returns a DuplicateKeyError when users repeat a user id or the
// discount rates repeat a membership type, as there is no way to pick one row.
func newSnapshotIndex(snap *snapshot.Snapshot) (*snapshotIndex, error) {
	idx := &snapshotIndex{
		users:        make(map[int64]*snapshot.User, len(snap.Users)),
		memberships:  make(map[int64][]*snapshot.MembershipPurchase),
		transactions: make(map[int64][]*snapshot.Transaction),
		activities:   make(map[int64][]*snapshot.Activity),
		rates:        make(map[string]decimal.Decimal, len(snap.DiscountRates)),
	}
	for i := range snap.Users {
		id := snap.Users[i].UserID
		if _, ok := idx.users[id]; ok {
			return nil, &e.DuplicateKeyError{Table: snapshot.EntityUsers, Key: strconv.FormatInt(id, 10)}
		}
		idx.users[id] = &snap.Users[i]
	}
	for i := range snap.Memberships {
		m := &snap.Memberships[i]
		idx.memberships[m.UserID] = append(idx.memberships[m.UserID], m)
	}
	for i := range snap.Transactions {
		t := &snap.Transactions[i]
		idx.transactions[t.UserID] = append(idx.transactions[t.UserID], t)
	}
	for i := range snap.Activities {
		a := &snap.Activities[i]
		idx.activities[a.UserID] = append(idx.activities[a.UserID], a)
	}
	for _, r := range snap.DiscountRates {
		mt := membershipType(r.MembershipType)
		if _, ok := idx.rates[mt]; ok {
			return nil, &e.DuplicateKeyError{Table: snapshot.EntityMerchantDiscountRate, Key: mt}
		}
		idx.rates[mt] = r.MdrPercentage
	}
	return idx, nil
}

// rate returns the MDR percentage of a membership type; ok is false when there is no rate row.
func (idx *snapshotIndex) rate(t string) (decimal.Decimal, bool) {
	r, ok := idx.rates[membershipType(t)]
	return r, ok
}

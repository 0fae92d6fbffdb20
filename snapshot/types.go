package snapshot

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity names. Each is also the default OLTP table name except MerchantDiscountRate.
const (
	EntityUsers                = "users"
	EntityTransactions         = "transactions"
	EntityMembershipPurchases  = "membership_purchases"
	EntityUserActivity         = "user_activity"
	EntityMerchantDiscountRate = "merchant_discount_rate"
)

// Entities returns every OLTP entity in extraction order.
func Entities() []string {
	return []string{EntityUsers, EntityTransactions, EntityMembershipPurchases, EntityUserActivity, EntityMerchantDiscountRate}
}

// DefaultTableNames maps entity to physical table name.
func DefaultTableNames() map[string]string {
	return map[string]string{
		EntityUsers:                "users",
		EntityTransactions:         "transactions",
		EntityMembershipPurchases:  "membership_purchases",
		EntityUserActivity:         "user_activity",
		EntityMerchantDiscountRate: "mdr_data",
	}
}

type User struct {
	UserID int64
	Name   *string
	Email  string
	Phone  *string
}

type Transaction struct {
	TransactionID string
	UserID        int64
	Amount        decimal.Decimal
	Timestamp     time.Time
}

type MembershipPurchase struct {
	MembershipID   string
	UserID         int64
	MembershipType string
	PurchaseDate   time.Time
	ExpiryDate     time.Time
}

type Activity struct {
	ActivityID   string
	UserID       int64
	ActivityType string
	ActivityDate time.Time
}

type DiscountRate struct {
	MembershipType string
	MdrPercentage  decimal.Decimal
}

// Snapshot is the state of the OLTP store read for one run date.
type Snapshot struct {
	RunDate       time.Time
	Users         []User
	Transactions  []Transaction
	Memberships   []MembershipPurchase
	Activities    []Activity
	DiscountRates []DiscountRate
}

// RowCounts returns the number of rows read per entity.
func (s *Snapshot) RowCounts() map[string]int {
	return map[string]int{
		EntityUsers:                len(s.Users),
		EntityTransactions:         len(s.Transactions),
		EntityMembershipPurchases:  len(s.Memberships),
		EntityUserActivity:         len(s.Activities),
		EntityMerchantDiscountRate: len(s.DiscountRates),
	}
}

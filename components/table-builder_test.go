package components

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	c "github.com/relloyd/scdpipe/constants"
	e "github.com/relloyd/scdpipe/etlerror"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/snapshot"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

func ts(s string) time.Time {
	t, err := time.Parse(c.TimestampFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(s string) *string { return &s }

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		RunDate: day("2024-03-01"),
		Users: []snapshot.User{
			{UserID: 2, Name: strPtr("Bea"), Email: "bea@example.com"},
			{UserID: 1, Name: strPtr("Al"), Email: "al@example.com", Phone: strPtr("555")},
			{UserID: 3, Email: "v@example.com"}, // no transactions
		},
		Transactions: []snapshot.Transaction{
			{TransactionID: "t1", UserID: 1, Amount: decimal.RequireFromString("100.00"), Timestamp: ts("2024-01-10 10:00:00")},
			{TransactionID: "t2", UserID: 1, Amount: decimal.RequireFromString("50.50"), Timestamp: ts("2024-01-20 09:30:00")},
			{TransactionID: "t3", UserID: 1, Amount: decimal.RequireFromString("10"), Timestamp: ts("2024-02-02 12:00:00")},
			{TransactionID: "t4", UserID: 2, Amount: decimal.RequireFromString("20"), Timestamp: ts("2024-01-15 08:00:00")},
		},
		Memberships: []snapshot.MembershipPurchase{
			{MembershipID: "m1", UserID: 1, MembershipType: "Basic", PurchaseDate: day("2024-01-01"), ExpiryDate: day("2024-01-31")},
			{MembershipID: "m2", UserID: 1, MembershipType: "premium", PurchaseDate: day("2024-01-15"), ExpiryDate: day("2024-02-14")},
		},
		Activities: []snapshot.Activity{
			{ActivityID: "a1", UserID: 1, ActivityType: "login", ActivityDate: day("2024-01-05")},
			{ActivityID: "a2", UserID: 1, ActivityType: "purchase", ActivityDate: day("2024-02-02")},
		},
		DiscountRates: []snapshot.DiscountRate{
			{MembershipType: "basic", MdrPercentage: decimal.RequireFromString("2.5")},
			{MembershipType: "PREMIUM", MdrPercentage: decimal.RequireFromString("1")},
		},
	}
}

func TestBuildUserProfiles(t *testing.T) {
	g := NewGomegaWithT(t)
	cands, err := BuildUserProfiles(logrus.New(), testSnapshot())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cands).To(HaveLen(3))
	al := cands[0].Attributes
	g.Expect(cands[0].Keys.GetData("user_id")).To(Equal(int64(1)))
	g.Expect(al.GetData("total_transactions")).To(Equal(int64(3)))
	g.Expect(al.GetData("total_spent").(decimal.Decimal).Equal(decimal.RequireFromString("160.5"))).To(BeTrue())
	g.Expect(al.GetData("first_transaction_date")).To(Equal(ts("2024-01-10 10:00:00")))
	g.Expect(al.GetData("last_transaction_date")).To(Equal(ts("2024-02-02 12:00:00")))
	g.Expect(al.GetData("last_membership")).To(Equal("premium"))
	g.Expect(al.GetData("last_membership_expiry_date")).To(Equal(day("2024-02-14")))
	g.Expect(al.GetData("basic_membership_duration_days")).To(Equal(int64(30)))
	g.Expect(al.GetData("premium_membership_duration_days")).To(Equal(int64(30)))
	g.Expect(al.GetData("last_activity")).To(Equal("purchase"))
	g.Expect(al.GetData("discount_rate").(decimal.Decimal).Equal(decimal.NewFromInt(1))).To(BeTrue())
	v := cands[2].Attributes
	g.Expect(v.GetData("total_transactions")).To(Equal(int64(0)))
	g.Expect(v.GetData("first_transaction_date")).To(BeNil())
	g.Expect(v.GetData("discount_rate")).To(BeNil())
	g.Expect(v.GetData("name")).To(BeNil())
}

func TestBuildUserProfilesMissingRate(t *testing.T) {
	g := NewGomegaWithT(t)
	snap := testSnapshot()
	snap.DiscountRates = snap.DiscountRates[:1]
	_, err := BuildUserProfiles(logrus.New(), snap)
	var be *e.BuildError
	g.Expect(err).To(BeAssignableToTypeOf(be))
	g.Expect(e.IsRetryable(err)).To(BeTrue())
}

func TestBuildersRejectDuplicateUsers(t *testing.T) {
	g := NewGomegaWithT(t)
	for _, order := range [][]string{{"a@x", "b@x"}, {"b@x", "a@x"}} {
		snap := testSnapshot()
		snap.Users = append(snap.Users,
			snapshot.User{UserID: 7, Email: order[0]},
			snapshot.User{UserID: 7, Email: order[1]})
		_, err := BuildUserProfiles(logrus.New(), snap)
		var dk *e.DuplicateKeyError
		g.Expect(err).To(BeAssignableToTypeOf(dk), "%v", order)
		g.Expect(err.(*e.DuplicateKeyError).Table).To(Equal(snapshot.EntityUsers))
		g.Expect(err.(*e.DuplicateKeyError).Key).To(Equal("7"))
		g.Expect(e.IsRetryable(err)).To(BeFalse())
		_, err = BuildTransactionSummaries(logrus.New(), snap, c.PeriodFormatMonth)
		g.Expect(err).To(BeAssignableToTypeOf(dk))
	}
}

func TestBuildersRejectDuplicateRates(t *testing.T) {
	g := NewGomegaWithT(t)
	snap := testSnapshot()
	snap.DiscountRates = append(snap.DiscountRates, snapshot.DiscountRate{MembershipType: " Basic", MdrPercentage: decimal.NewFromInt(5)})
	for _, build := range []func(logger.Logger, *snapshot.Snapshot) ([]Candidate, error){BuildUserProfiles, BuildMembershipSummaries} {
		_, err := build(logrus.New(), snap)
		var dk *e.DuplicateKeyError
		g.Expect(err).To(BeAssignableToTypeOf(dk))
		g.Expect(err.(*e.DuplicateKeyError).Table).To(Equal(snapshot.EntityMerchantDiscountRate))
		g.Expect(err.(*e.DuplicateKeyError).Key).To(Equal("basic"))
	}
	builders, err := DefaultTableBuilders(c.SummaryPeriodMonth)
	g.Expect(err).NotTo(HaveOccurred())
	_, err = RunBuilders(context.Background(), logrus.New(), builders, snap)
	var dk *e.DuplicateKeyError
	g.Expect(err).To(BeAssignableToTypeOf(dk), "fatal errors are not wrapped")
	g.Expect(e.IsFatal(err)).To(BeTrue())
}

func TestBuildTransactionSummaries(t *testing.T) {
	g := NewGomegaWithT(t)
	cands, err := BuildTransactionSummaries(logrus.New(), testSnapshot(), c.PeriodFormatMonth)
	g.Expect(err).NotTo(HaveOccurred())
	// User 3 has no transactions so there is no summary for them.
	g.Expect(cands).To(HaveLen(3))
	jan := cands[0]
	g.Expect(jan.Keys.GetData("period")).To(Equal("2024-01"))
	g.Expect(jan.Attributes.GetData("total_transactions")).To(Equal(int64(2)))
	// t1 is basic (2.5% of 100), t2 is covered by both and premium expires later (1% of 50.50).
	g.Expect(jan.Attributes.GetData("mdr_revenue").(decimal.Decimal).String()).To(Equal("3.005"))
	g.Expect(jan.Attributes.GetData("membership_type")).To(Equal("premium"))
	feb := cands[1]
	g.Expect(feb.Keys.GetData("period")).To(Equal("2024-02"))
	g.Expect(feb.Attributes.GetData("mdr_revenue").(decimal.Decimal).String()).To(Equal("0.1"))
	bea := cands[2]
	g.Expect(bea.Keys.GetData("user_id")).To(Equal(int64(2)))
	g.Expect(bea.Attributes.GetData("membership_type")).To(Equal(c.MembershipTypeNone))
	g.Expect(bea.Attributes.GetData("mdr_revenue").(decimal.Decimal).IsZero()).To(BeTrue())
}

func TestBuildTransactionSummariesUnknownUser(t *testing.T) {
	g := NewGomegaWithT(t)
	snap := testSnapshot()
	snap.Transactions = append(snap.Transactions, snapshot.Transaction{TransactionID: "t9", UserID: 99, Amount: decimal.NewFromInt(1), Timestamp: ts("2024-01-01 00:00:00")})
	_, err := BuildTransactionSummaries(logrus.New(), snap, c.DateFormat)
	var be *e.BuildError
	g.Expect(err).To(BeAssignableToTypeOf(be))
	g.Expect(err.(*e.BuildError).Key).To(Equal("t9"))
}

func TestBuildMembershipSummaries(t *testing.T) {
	g := NewGomegaWithT(t)
	cands, err := BuildMembershipSummaries(logrus.New(), testSnapshot())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cands).To(HaveLen(2))
	g.Expect(cands[0].Keys.GetData("membership_type")).To(Equal("basic"))
	g.Expect(cands[0].Attributes.GetData("total_transactions")).To(Equal(int64(1)))
	g.Expect(cands[1].Keys.GetData("membership_type")).To(Equal("premium"))
	g.Expect(cands[1].Attributes.GetData("total_amount").(decimal.Decimal).String()).To(Equal("60.5"))
}

func TestRunBuilders(t *testing.T) {
	g := NewGomegaWithT(t)
	builders, err := DefaultTableBuilders(c.SummaryPeriodDay)
	g.Expect(err).NotTo(HaveOccurred())
	out, err := RunBuilders(context.Background(), logrus.New(), builders, testSnapshot())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out).To(HaveKey(tabledefinition.UserProfiling.TableName))
	g.Expect(out[tabledefinition.TransactionSummary.TableName]).To(HaveLen(4))
	g.Expect(out[tabledefinition.MembershipSummary.TableName]).To(HaveLen(2))

	_, err = DefaultTableBuilders("week")
	g.Expect(err).To(HaveOccurred())
}

func TestRunBuildersWrapsUntypedErrors(t *testing.T) {
	g := NewGomegaWithT(t)
	builders := []TableBuilder{{
		Table: tabledefinition.MembershipSummary,
		Build: func(_ logger.Logger, _ *snapshot.Snapshot) ([]Candidate, error) {
			return nil, errors.New("boom")
		},
	}}
	_, err := RunBuilders(context.Background(), logrus.New(), builders, testSnapshot())
	var be *e.BuildError
	g.Expect(err).To(BeAssignableToTypeOf(be))
	g.Expect(err.Error()).To(Equal(`build of "membership_summary" failed: boom`))
}

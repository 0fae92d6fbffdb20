package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	e "github.com/relloyd/scdpipe/etlerror"
	"github.com/relloyd/scdpipe/rdbms/shared"
)

var sourceDDL = []string{
	`create table users (User_ID integer, Name text, Email text, Phone text)`,
	`create table transactions (Transaction_ID text, User_ID integer, Transaction_Amount real, Timestamp text)`,
	`create table membership_purchases (Membership_ID text, User_ID integer, Membership_Type text, Purchase_Date text, Expiry_Date text)`,
	`create table user_activity (Activity_ID text, User_ID integer, Activity_Type text, Activity_Date text)`,
	`create table mdr_data (Membership_Type text, MDR_Percentage real)`,
	`insert into users values (1, 'Ann', 'ann@example.com', null), (2, null, 'bob@example.com', '555'), (3, 'No Email', null, null)`,
	`insert into transactions values ('t1', 1, 100.5, '2024-01-02 10:00:00'), ('t2', 2, 20, '2024-01-03T08:30:00Z')`,
	`insert into membership_purchases values ('m1', 1, 'Gold', '2024-01-01', '2024-12-31')`,
	`insert into user_activity values ('a1', 1, 'login', '2024-01-02'), ('a2', 2, 'test', '2024-01-03'), ('a3', 2, '', '2024-01-03')`,
	`insert into mdr_data values ('gold', 1.5), ('basic', 3)`,
}

func newTestSource(t *testing.T, extra ...string) shared.Querier {
	t.Helper()
	dir, err := ioutil.TempDir("", "snapshot")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	db, err := sql.Open("sqlite", filepath.Join(dir, "oltp.db"))
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	conn := &shared.HpConnection{DbSql: db, Dml: shared.NewSqliteDmlGenerator(), DbType: "sqlite"}
	t.Cleanup(conn.Close)
	for _, stmt := range append(append([]string{}, sourceDDL...), extra...) {
		if _, err := conn.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("%v: %v", stmt, err)
		}
	}
	return conn
}

var runDate = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

func TestExtract(t *testing.T) {
	g := NewGomegaWithT(t)
	x, err := NewExtractor(&ExtractorConfig{Log: logrus.New(), Source: newTestSource(t)})
	g.Expect(err).NotTo(HaveOccurred())
	snap, err := x.Extract(context.Background(), runDate.Add(5*time.Hour))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(snap.RunDate).To(Equal(runDate))
	g.Expect(snap.RowCounts()).To(Equal(map[string]int{
		EntityUsers:                2,
		EntityTransactions:         2,
		EntityMembershipPurchases:  1,
		EntityUserActivity:         2,
		EntityMerchantDiscountRate: 2,
	}))
	g.Expect(snap.Users[0].UserID).To(Equal(int64(1)))
	g.Expect(*snap.Users[0].Name).To(Equal("Ann"))
	g.Expect(snap.Users[0].Phone).To(BeNil())
	g.Expect(snap.Users[1].Name).To(BeNil())
	g.Expect(snap.Transactions[0].Amount.Equal(decimal.RequireFromString("100.5"))).To(BeTrue())
	g.Expect(snap.Transactions[0].Timestamp).To(Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
	g.Expect(snap.Transactions[1].Timestamp).To(Equal(time.Date(2024, 1, 3, 8, 30, 0, 0, time.UTC)))
	g.Expect(snap.Memberships[0].MembershipType).To(Equal("Gold"))
	g.Expect(snap.Memberships[0].ExpiryDate).To(Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)))
	g.Expect(snap.DiscountRates[1].MdrPercentage.Equal(decimal.NewFromInt(3))).To(BeTrue())
}

func TestExtractFilterAndTableNames(t *testing.T) {
	g := NewGomegaWithT(t)
	source := newTestSource(t,
		`create table rates_v2 (membership_type text, mdr_percentage text)`,
		`insert into rates_v2 values ('gold', '2.25')`)
	x, err := NewExtractor(&ExtractorConfig{
		Log:        logrus.New(),
		Source:     source,
		TableNames: map[string]string{EntityMerchantDiscountRate: "rates_v2"},
		Filters:    map[string]string{EntityUserActivity: `{"!=": [{"var": "Activity_Type"}, "test"]}`},
	})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(x.TableName(EntityMerchantDiscountRate)).To(Equal("rates_v2"))
	g.Expect(x.TableName(EntityUsers)).To(Equal("users"))
	snap, err := x.Extract(context.Background(), runDate)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(snap.Activities).To(HaveLen(1))
	g.Expect(snap.Activities[0].ActivityID).To(Equal("a1"))
	g.Expect(snap.DiscountRates).To(HaveLen(1))
	g.Expect(snap.DiscountRates[0].MdrPercentage.String()).To(Equal("2.25"))
}

func TestNewExtractorErrors(t *testing.T) {
	g := NewGomegaWithT(t)
	source := newTestSource(t)
	_, err := NewExtractor(&ExtractorConfig{Log: logrus.New(), Source: source, TableNames: map[string]string{"accounts": "x"}})
	g.Expect(err).To(MatchError(`unknown entity "accounts" in table names`))
	_, err = NewExtractor(&ExtractorConfig{Log: logrus.New(), Source: source, Filters: map[string]string{EntityUsers: `{"==": [`}})
	g.Expect(err).To(HaveOccurred())
	_, err = NewExtractor(&ExtractorConfig{Log: logrus.New()})
	g.Expect(err).To(HaveOccurred())
}

func TestExtractErrors(t *testing.T) {
	cases := []struct {
		name   string
		extra  []string
		table  string
		column string
		row    int
	}{
		{
			name:   "missing column",
			extra:  []string{`create table users_v2 (User_ID integer, Name text)`},
			table:  "users_v2",
			column: "Email",
		},
		{
			name:   "bad amount",
			extra:  []string{`insert into transactions values ('t3', 1, 'ten', '2024-01-04')`},
			table:  "transactions",
			column: "Transaction_Amount",
			row:    3,
		},
		{
			name:   "expiry before purchase",
			extra:  []string{`insert into membership_purchases values ('m2', 2, 'basic', '2024-02-01', '2024-01-01')`},
			table:  "membership_purchases",
			column: "Expiry_Date",
			row:    2,
		},
		{
			name:   "fractional user id",
			extra:  []string{`insert into user_activity values ('a4', 1.5, 'login', '2024-01-04')`},
			table:  "user_activity",
			column: "User_ID",
			row:    4,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGomegaWithT(t)
			cfg := &ExtractorConfig{Log: logrus.New(), Source: newTestSource(t, tc.extra...)}
			if tc.table == "users_v2" {
				cfg.TableNames = map[string]string{EntityUsers: "users_v2"}
			}
			x, err := NewExtractor(cfg)
			g.Expect(err).NotTo(HaveOccurred())
			_, err = x.Extract(context.Background(), runDate)
			var xe *e.ExtractionError
			g.Expect(errors.As(err, &xe)).To(BeTrue(), "got %v", err)
			g.Expect(xe.Table).To(Equal(tc.table))
			g.Expect(xe.Column).To(Equal(tc.column))
			g.Expect(xe.Row).To(Equal(tc.row))
		})
	}
}

func TestExtractCancelled(t *testing.T) {
	g := NewGomegaWithT(t)
	x, err := NewExtractor(&ExtractorConfig{Log: logrus.New(), Source: newTestSource(t)})
	g.Expect(err).NotTo(HaveOccurred())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = x.Extract(ctx, runDate)
	g.Expect(err).To(MatchError(context.Canceled))
}

type fakeUploader struct {
	objects map[string]string
	err     error
}

func (f *fakeUploader) Put(key string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.objects[key] = string(data)
	return nil
}

func (f *fakeUploader) BufferPut(key string, buf io.ReadSeeker) error {
	data, err := ioutil.ReadAll(buf)
	if err != nil {
		return err
	}
	return f.Put(key, data)
}

func TestExtractArchives(t *testing.T) {
	g := NewGomegaWithT(t)
	dir, err := ioutil.TempDir("", "archive")
	g.Expect(err).NotTo(HaveOccurred())
	defer os.RemoveAll(dir)
	up := &fakeUploader{objects: make(map[string]string)}
	x, err := NewExtractor(&ExtractorConfig{
		Log:      logrus.New(),
		Source:   newTestSource(t),
		Archiver: &Archiver{Log: logrus.New(), Directory: dir, Uploader: up},
	})
	g.Expect(err).NotTo(HaveOccurred())
	_, err = x.Extract(context.Background(), runDate)
	g.Expect(err).NotTo(HaveOccurred())

	data, err := ioutil.ReadFile(filepath.Join(dir, "2024-01-05", "users.csv"))
	g.Expect(err).NotTo(HaveOccurred())
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	g.Expect(lines).To(Equal([]string{
		"User_ID,Email,Name,Phone",
		"1,ann@example.com,Ann,",
		"2,bob@example.com,,555",
	}))
	g.Expect(up.objects).To(HaveLen(5))
	g.Expect(up.objects).To(HaveKeyWithValue("2024-01-05/users.csv", string(data)))
	g.Expect(up.objects).To(HaveKey("2024-01-05/merchant_discount_rate.csv"))
}

func TestExtractArchiveFailure(t *testing.T) {
	g := NewGomegaWithT(t)
	dir, err := ioutil.TempDir("", "archive")
	g.Expect(err).NotTo(HaveOccurred())
	defer os.RemoveAll(dir)
	x, err := NewExtractor(&ExtractorConfig{
		Log:      logrus.New(),
		Source:   newTestSource(t),
		Archiver: &Archiver{Log: logrus.New(), Directory: dir, Uploader: &fakeUploader{err: errors.New("denied")}},
	})
	g.Expect(err).NotTo(HaveOccurred())
	_, err = x.Extract(context.Background(), runDate)
	var xe *e.ExtractionError
	g.Expect(errors.As(err, &xe)).To(BeTrue())
	g.Expect(xe.Table).To(Equal("users"))
	g.Expect(err.Error()).To(ContainSubstring("denied"))
}

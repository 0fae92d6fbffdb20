package snapshot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	e "github.com/relloyd/scdpipe/etlerror"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/rdbms/shared"
)

// entityColumns lists the source columns read per entity: required columns first.
// Rows with an empty required column are dropped.
var entityColumns = map[string]struct {
	required []string
	optional []string
}{
	EntityUsers:                {required: []string{"User_ID", "Email"}, optional: []string{"Name", "Phone"}},
	EntityTransactions:         {required: []string{"Transaction_ID", "User_ID", "Transaction_Amount", "Timestamp"}},
	EntityMembershipPurchases:  {required: []string{"Membership_ID", "User_ID", "Membership_Type", "Purchase_Date", "Expiry_Date"}},
	EntityUserActivity:         {required: []string{"Activity_ID", "User_ID", "Activity_Type", "Activity_Date"}},
	EntityMerchantDiscountRate: {required: []string{"Membership_Type", "MDR_Percentage"}},
}

type ExtractorConfig struct {
	Log        logger.Logger
	Source     shared.Querier
	TableNames map[string]string // entity to physical table; missing entries use DefaultTableNames
	Filters    map[string]string // entity to JSON Logic rule applied to raw rows
	Archiver   *Archiver         // optional
}

// Extractor reads the current state of every OLTP entity.
type Extractor struct {
	log        logger.Logger
	source     shared.Querier
	tableNames map[string]string
	filters    map[string]*rowFilter
	archiver   *Archiver
}

// NewExtractor validates cfg, including every filter rule, and returns an Extractor.
func NewExtractor(cfg *ExtractorConfig) (*Extractor, error) {
	if cfg.Log == nil || cfg.Source == nil {
		return nil, errors.New("extractor requires a logger and a source connection")
	}
	x := &Extractor{
		log:        cfg.Log,
		source:     cfg.Source,
		tableNames: DefaultTableNames(),
		filters:    make(map[string]*rowFilter),
		archiver:   cfg.Archiver,
	}
	for entity, table := range cfg.TableNames {
		if _, ok := x.tableNames[entity]; !ok {
			return nil, fmt.Errorf("unknown entity %q in table names", entity)
		}
		if strings.TrimSpace(table) != "" {
			x.tableNames[entity] = strings.TrimSpace(table)
		}
	}
	for entity, rule := range cfg.Filters {
		if _, ok := x.tableNames[entity]; !ok {
			return nil, fmt.Errorf("unknown entity %q in filters", entity)
		}
		f, err := newRowFilter(entity, rule)
		if err != nil {
			return nil, err
		}
		if f != nil {
			x.filters[entity] = f
		}
	}
	return x, nil
}

// TableName returns the physical table read for entity.
func (x *Extractor) TableName(entity string) string {
	return x.tableNames[entity]
}

// Extract reads every entity. runDate is recorded on the snapshot and names the archive; it does not filter rows.
func (x *Extractor) Extract(ctx context.Context, runDate time.Time) (*Snapshot, error) {
	snap := &Snapshot{RunDate: h.TruncateToDay(runDate)}
	parsers := map[string]rowParser{
		EntityUsers:                snap.addUser,
		EntityTransactions:         snap.addTransaction,
		EntityMembershipPurchases:  snap.addMembership,
		EntityUserActivity:         snap.addActivity,
		EntityMerchantDiscountRate: snap.addDiscountRate,
	}
	for _, entity := range Entities() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := x.readEntity(ctx, entity, parsers[entity])
		if err != nil {
			return nil, err
		}
		if x.archiver != nil {
			cols := entityColumns[entity]
			header := append(append([]string{}, cols.required...), cols.optional...)
			if err := x.archiver.Archive(snap.RunDate, entity, header, records); err != nil {
				return nil, &e.ExtractionError{Table: x.tableNames[entity], Err: errors.Wrap(err, "archive failed")}
			}
		}
	}
	x.log.Info("extracted snapshot for ", h.FormatDate(snap.RunDate), ": ", snap.RowCounts())
	return snap, nil
}

// rowParser adds one typed row to the snapshot. It returns the column that failed to parse with the error.
type rowParser func(row map[string]interface{}) (column string, err error)

// readEntity runs SELECT * on the entity's table and passes each kept row to fn.
// It returns the text of every kept row in archive column order.
func (x *Extractor) readEntity(ctx context.Context, entity string, fn rowParser) ([][]string, error) {
	table := x.tableNames[entity]
	cols := entityColumns[entity]
	x.log.Debug("extracting ", entity, " from table ", table)
	rows, err := x.source.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %v", table))
	if err != nil {
		return nil, &e.ExtractionError{Table: table, Err: err}
	}
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return nil, &e.ExtractionError{Table: table, Err: err}
	}
	// Find the position of each wanted column, ignoring case.
	positions := make(map[string]int, len(names))
	for idx, n := range names {
		positions[strings.ToLower(n)] = idx
	}
	wanted := append(append([]string{}, cols.required...), cols.optional...)
	colIdx := make([]int, len(wanted))
	for i, w := range wanted {
		p, ok := positions[strings.ToLower(w)]
		if !ok {
			return nil, &e.ExtractionError{Table: table, Column: w, Err: errors.New("missing column")}
		}
		colIdx[i] = p
	}
	scanVals := make([]interface{}, len(names))
	scanPtrs := make([]interface{}, len(names))
	for idx := range scanVals {
		scanPtrs[idx] = &scanVals[idx]
	}
	retval := make([][]string, 0)
	rowNum, dropped, filtered := 0, 0, 0
	for rows.Next() {
		rowNum++
		if err := rows.Scan(scanPtrs...); err != nil {
			return nil, &e.ExtractionError{Table: table, Row: rowNum, Err: err}
		}
		row := make(map[string]interface{}, len(wanted))
		text := make([]string, len(wanted))
		keep := true
		for i, w := range wanted {
			s, ok, err := h.GetStringFromInterface(scanVals[colIdx[i]])
			if err != nil {
				return nil, &e.ExtractionError{Table: table, Column: w, Row: rowNum, Err: err}
			}
			if !ok || strings.TrimSpace(s) == "" {
				if i < len(cols.required) {
					keep = false
				}
				row[w] = nil
				continue
			}
			row[w] = s
			text[i] = s
		}
		if !keep {
			dropped++
			continue
		}
		if ok, err := x.filters[entity].keep(row); err != nil {
			return nil, &e.ExtractionError{Table: table, Row: rowNum, Err: err}
		} else if !ok {
			filtered++
			continue
		}
		if col, err := fn(row); err != nil {
			return nil, &e.ExtractionError{Table: table, Column: col, Row: rowNum, Err: err}
		}
		retval = append(retval, text)
	}
	if err := rows.Err(); err != nil {
		return nil, &e.ExtractionError{Table: table, Err: err}
	}
	if dropped > 0 {
		x.log.Warn("dropped ", dropped, " rows with empty required columns from table ", table)
	}
	x.log.Debug("read ", rowNum, " rows from table ", table, "; kept=", len(retval), "; filtered=", filtered)
	return retval, nil
}

// Typed parsers. Only called with non-nil required columns.

func (s *Snapshot) addUser(row map[string]interface{}) (string, error) {
	id, err := parseInt(row["User_ID"])
	if err != nil {
		return "User_ID", err
	}
	s.Users = append(s.Users, User{
		UserID: id,
		Name:   optionalText(row["Name"]),
		Email:  row["Email"].(string),
		Phone:  optionalText(row["Phone"]),
	})
	return "", nil
}

func (s *Snapshot) addTransaction(row map[string]interface{}) (string, error) {
	userID, err := parseInt(row["User_ID"])
	if err != nil {
		return "User_ID", err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(row["Transaction_Amount"].(string)))
	if err != nil {
		return "Transaction_Amount", err
	}
	ts, err := h.ParseTimestamp(row["Timestamp"].(string))
	if err != nil {
		return "Timestamp", err
	}
	s.Transactions = append(s.Transactions, Transaction{
		TransactionID: row["Transaction_ID"].(string),
		UserID:        userID,
		Amount:        amount,
		Timestamp:     ts,
	})
	return "", nil
}

func (s *Snapshot) addMembership(row map[string]interface{}) (string, error) {
	userID, err := parseInt(row["User_ID"])
	if err != nil {
		return "User_ID", err
	}
	purchase, err := h.ParseDate(row["Purchase_Date"].(string))
	if err != nil {
		return "Purchase_Date", err
	}
	expiry, err := h.ParseDate(row["Expiry_Date"].(string))
	if err != nil {
		return "Expiry_Date", err
	}
	if expiry.Before(purchase) {
		return "Expiry_Date", fmt.Errorf("expiry date %v is before purchase date %v", h.FormatDate(expiry), h.FormatDate(purchase))
	}
	s.Memberships = append(s.Memberships, MembershipPurchase{
		MembershipID:   row["Membership_ID"].(string),
		UserID:         userID,
		MembershipType: row["Membership_Type"].(string),
		PurchaseDate:   purchase,
		ExpiryDate:     expiry,
	})
	return "", nil
}

func (s *Snapshot) addActivity(row map[string]interface{}) (string, error) {
	userID, err := parseInt(row["User_ID"])
	if err != nil {
		return "User_ID", err
	}
	d, err := h.ParseDate(row["Activity_Date"].(string))
	if err != nil {
		return "Activity_Date", err
	}
	s.Activities = append(s.Activities, Activity{
		ActivityID:   row["Activity_ID"].(string),
		UserID:       userID,
		ActivityType: row["Activity_Type"].(string),
		ActivityDate: d,
	})
	return "", nil
}

func (s *Snapshot) addDiscountRate(row map[string]interface{}) (string, error) {
	pct, err := decimal.NewFromString(strings.TrimSpace(row["MDR_Percentage"].(string)))
	if err != nil {
		return "MDR_Percentage", err
	}
	s.DiscountRates = append(s.DiscountRates, DiscountRate{
		MembershipType: row["Membership_Type"].(string),
		MdrPercentage:  pct,
	})
	return "", nil
}

// parseInt accepts whole numbers written as integers or as decimals with a zero fraction, e.g. "12.0".
func parseInt(v interface{}) (int64, error) {
	s := strings.TrimSpace(v.(string))
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return d.IntPart(), nil
}

func optionalText(v interface{}) *string {
	if v == nil {
		return nil
	}
	s := v.(string)
	return &s
}

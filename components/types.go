package components

import (
	"fmt"
	"time"

	"github.com/relloyd/scdpipe/stream"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

// ReplayPolicy decides what happens when a run date equal to the active version's start
// carries different attributes.
type ReplayPolicy string

const (
	ReplayPolicyReject  ReplayPolicy = "reject"
	ReplayPolicyCorrect ReplayPolicy = "correct"
)

// ParseReplayPolicy validates a policy name read from config.
func ParseReplayPolicy(s string) (ReplayPolicy, error) {
	switch p := ReplayPolicy(s); p {
	case ReplayPolicyReject, ReplayPolicyCorrect:
		return p, nil
	case "":
		return ReplayPolicyReject, nil
	}
	return "", fmt.Errorf("unsupported replay policy %q, expected %q or %q", s, ReplayPolicyReject, ReplayPolicyCorrect)
}

// Candidate is the version of one business key derived from a snapshot.
type Candidate struct {
	Keys       stream.Record
	Attributes stream.Record
}

// NewCandidate splits values into business key and tracked attributes for table t.
// Every key and tracked column must be present; values are normalised to the column type.
func NewCandidate(t *tabledefinition.TableDefinition, values map[string]interface{}) (Candidate, error) {
	c := Candidate{Keys: stream.NewRecord(), Attributes: stream.NewRecord()}
	fill := func(cols []tabledefinition.TableColumn, rec stream.Record) error {
		for _, col := range cols {
			v, ok := values[col.ColName]
			if !ok {
				return fmt.Errorf("missing value for column %q", col.ColName)
			}
			n, err := col.Normalise(v)
			if err != nil {
				return err
			}
			rec.SetData(col.ColName, n)
		}
		return nil
	}
	if err := fill(t.KeyColumns, c.Keys); err != nil {
		return Candidate{}, err
	}
	if err := fill(t.TrackedColumns, c.Attributes); err != nil {
		return Candidate{}, err
	}
	if len(values) != len(t.KeyColumns)+len(t.TrackedColumns) {
		return Candidate{}, fmt.Errorf("unexpected columns supplied for table %q: %v", t.TableName, values)
	}
	return c, nil
}

// WarehouseRow is one stored version of a business key.
type WarehouseRow struct {
	SurrogateKey       int64
	Keys               stream.Record
	Attributes         stream.Record
	EffectiveStartDate time.Time
	EffectiveEndDate   *time.Time // nil while the version is open
	IsActive           bool
}

// validOn reports whether the version covers day d.
func (r *WarehouseRow) validOn(d time.Time) bool {
	if d.Before(r.EffectiveStartDate) {
		return false
	}
	return r.EffectiveEndDate == nil || d.Before(*r.EffectiveEndDate)
}

type MutationKind int

const (
	MutationInsert MutationKind = iota + 1
	MutationClose
	MutationCorrect
)

func (k MutationKind) String() string {
	switch k {
	case MutationInsert:
		return "insert"
	case MutationClose:
		return "close"
	case MutationCorrect:
		return "correct"
	}
	return "unknown"
}

// Mutation is one change to a warehouse table.
// Inserts carry Keys and Attributes; closes carry SurrogateKey and EffectiveEndDate;
// corrections carry SurrogateKey and Attributes.
type Mutation struct {
	Kind               MutationKind
	Flag               string // merge flag that produced the mutation
	Key                string
	SurrogateKey       int64
	Keys               stream.Record
	Attributes         stream.Record
	EffectiveStartDate time.Time
	EffectiveEndDate   *time.Time
}

type MergeStats struct {
	Inserted  int `json:"inserted"`
	Closed    int `json:"closed"`
	Corrected int `json:"corrected"`
	Unchanged int `json:"unchanged"`
}

// Add accumulates o into s.
func (s *MergeStats) Add(o MergeStats) {
	s.Inserted += o.Inserted
	s.Closed += o.Closed
	s.Corrected += o.Corrected
	s.Unchanged += o.Unchanged
}

// MergePlan is the mutation set for one table and run date.
type MergePlan struct {
	Table     *tabledefinition.TableDefinition
	RunDate   time.Time
	Mutations []Mutation
	Stats     MergeStats
}

// MutationsOfKind returns the mutations of kind k in plan order.
func (p *MergePlan) MutationsOfKind(k MutationKind) []Mutation {
	retval := make([]Mutation, 0)
	for _, m := range p.Mutations {
		if m.Kind == k {
			retval = append(retval, m)
		}
	}
	return retval
}

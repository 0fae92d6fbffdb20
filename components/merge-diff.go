package components

import (
	"sort"
	"time"

	om "github.com/cevaris/ordered_map"

	c "github.com/relloyd/scdpipe/constants"
	e "github.com/relloyd/scdpipe/etlerror"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

type MergeDiffConfig struct {
	Log        logger.Logger
	Table      *tabledefinition.TableDefinition
	RunDate    time.Time
	Policy     ReplayPolicy
	Candidates []Candidate
	History    []WarehouseRow // all stored versions for the table, any order
}

// NewMergePlan compares the candidates for a run date with the stored history of the table and
// returns the mutations that extend history without duplicating it.
// Each candidate business key gets one of these merge flags:
//
//   N == no active version exists, insert the candidate starting on the run date
//   C == the active version differs, close it on the run date and insert the candidate
//   I == the version valid on the run date is identical, no mutation
//   U == the run date equals the active version's start and the policy allows correction, update in place
//
// Keys stored in the table but missing from the candidates are left alone.
// Duplicate candidate keys return a DuplicateKeyError, broken history an InvariantViolation and
// attributes that would rewrite closed history a ReplayConflictError. All three are fatal.
func NewMergePlan(cfg *MergeDiffConfig) (*MergePlan, error) {
	t := cfg.Table
	runDate := h.TruncateToDay(cfg.RunDate)
	keyNames := t.KeyNames()
	joinKeys := t.KeyColumnsMap()
	compareKeys := t.TrackedColumnsMap()
	policy := cfg.Policy
	if policy == "" {
		policy = ReplayPolicyReject
	}
	cfg.Log.Debug("planning merge for table ", t.TableName, " with ", len(cfg.Candidates), " candidates and ", len(cfg.History), " stored rows")
	// Sort candidates by key so duplicates are adjacent and the plan is deterministic.
	candidates := append([]Candidate{}, cfg.Candidates...)
	SortCandidates(candidates, joinKeys)
	for idx := 1; idx < len(candidates); idx++ {
		if candidates[idx-1].Keys.CompareByKeyFields(candidates[idx].Keys, joinKeys) == 0 {
			return nil, &e.DuplicateKeyError{Table: t.TableName, Key: candidates[idx].Keys.GetDataKeysAsString(keyNames)}
		}
	}
	// Group the history by key and check it before planning anything.
	history := groupHistory(cfg.History, keyNames)
	for key, rows := range history {
		if err := CheckHistory(t.TableName, key, rows); err != nil {
			return nil, err
		}
	}
	plan := &MergePlan{Table: t, RunDate: runDate, Mutations: make([]Mutation, 0)}
	for _, cand := range candidates {
		key := cand.Keys.GetDataKeysAsString(keyNames)
		flag, err := planKey(plan, policy, key, cand, history[key], compareKeys)
		if err != nil {
			return nil, err
		}
		cfg.Log.Trace("table ", t.TableName, " key ", key, " merge flag ", flag)
	}
	cfg.Log.Debug("merge plan for table ", t.TableName, ": inserted=", plan.Stats.Inserted,
		" closed=", plan.Stats.Closed, " corrected=", plan.Stats.Corrected, " unchanged=", plan.Stats.Unchanged)
	return plan, nil
}

// planKey adds the mutations for one candidate to plan and returns the merge flag used.
func planKey(plan *MergePlan, policy ReplayPolicy, key string, cand Candidate, rows []WarehouseRow, compareKeys *om.OrderedMap) (string, error) {
	runDate := plan.RunDate
	conflict := func(start time.Time) error {
		return &e.ReplayConflictError{Table: plan.Table.TableName, Key: key, RunDate: runDate, ActiveStart: start}
	}
	if len(rows) == 0 {
		plan.insert(key, cand)
		return c.MergeDiffValueNew, nil
	}
	latest := rows[len(rows)-1] // CheckHistory guarantees the latest row is the active one.
	if runDate.After(latest.EffectiveStartDate) {
		if equal, _ := cand.Attributes.DataIsEqual(latest.Attributes, compareKeys); equal {
			plan.Stats.Unchanged++
			return c.MergeDiffValueIdentical, nil
		}
		plan.close(key, latest)
		plan.insert(key, cand)
		return c.MergeDiffValueChanged, nil
	}
	// Replay of the latest start date or an earlier date.
	var valid *WarehouseRow
	for idx := range rows {
		if rows[idx].validOn(runDate) {
			valid = &rows[idx]
			break
		}
	}
	if valid != nil {
		if equal, _ := cand.Attributes.DataIsEqual(valid.Attributes, compareKeys); equal {
			plan.Stats.Unchanged++
			return c.MergeDiffValueIdentical, nil
		}
	}
	if valid != nil && valid.IsActive && runDate.Equal(valid.EffectiveStartDate) && policy == ReplayPolicyCorrect {
		plan.correct(key, *valid, cand)
		return c.MergeDiffValueCorrected, nil
	}
	return "", conflict(latest.EffectiveStartDate)
}

func (p *MergePlan) insert(key string, cand Candidate) {
	p.Mutations = append(p.Mutations, Mutation{
		Kind:               MutationInsert,
		Flag:               c.MergeDiffValueNew,
		Key:                key,
		Keys:               cand.Keys,
		Attributes:         cand.Attributes,
		EffectiveStartDate: p.RunDate,
	})
	p.Stats.Inserted++
}

func (p *MergePlan) close(key string, row WarehouseRow) {
	end := p.RunDate
	p.Mutations = append(p.Mutations, Mutation{
		Kind:               MutationClose,
		Flag:               c.MergeDiffValueChanged,
		Key:                key,
		SurrogateKey:       row.SurrogateKey,
		Keys:               row.Keys,
		EffectiveStartDate: row.EffectiveStartDate,
		EffectiveEndDate:   &end,
	})
	p.Stats.Closed++
}

func (p *MergePlan) correct(key string, row WarehouseRow, cand Candidate) {
	p.Mutations = append(p.Mutations, Mutation{
		Kind:               MutationCorrect,
		Flag:               c.MergeDiffValueCorrected,
		Key:                key,
		SurrogateKey:       row.SurrogateKey,
		Keys:               row.Keys,
		Attributes:         cand.Attributes,
		EffectiveStartDate: row.EffectiveStartDate,
	})
	p.Stats.Corrected++
}

// SortCandidates sorts by business key using the key fields in joinKeys.
func SortCandidates(candidates []Candidate, joinKeys *om.OrderedMap) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Keys.CompareByKeyFields(candidates[j].Keys, joinKeys) < 0
	})
}

// groupHistory returns the rows per business key, each group ordered by effective start date.
func groupHistory(rows []WarehouseRow, keyNames []string) map[string][]WarehouseRow {
	retval := make(map[string][]WarehouseRow)
	for _, r := range rows {
		k := r.Keys.GetDataKeysAsString(keyNames)
		retval[k] = append(retval[k], r)
	}
	for _, group := range retval {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].EffectiveStartDate.Before(group[j].EffectiveStartDate)
		})
	}
	return retval
}

// CheckHistory verifies the versions of one business key, ordered by start date:
// exactly one active row which must be the latest and open, closed rows with end after start,
// and each version starting where the previous one ended.
// Closing a version always inserts its successor, so history without an active row is broken.
func CheckHistory(table string, key string, rows []WarehouseRow) error {
	violation := func(reason string) error {
		return &e.InvariantViolation{Table: table, Key: key, Reason: reason}
	}
	numActive := 0
	for _, r := range rows {
		if r.IsActive {
			numActive++
		}
	}
	if numActive > 1 {
		return violation("more than one active row")
	}
	for idx, r := range rows {
		if r.IsActive {
			if r.EffectiveEndDate != nil {
				return violation("active row has an end date")
			}
			if idx != len(rows)-1 {
				return violation("active row is not the latest version")
			}
		} else {
			if r.EffectiveEndDate == nil {
				return violation("closed row has no end date")
			}
			if !r.EffectiveEndDate.After(r.EffectiveStartDate) {
				return violation("end date is not after start date")
			}
		}
		if idx > 0 {
			prev := rows[idx-1]
			if prev.EffectiveEndDate == nil || !prev.EffectiveEndDate.Equal(r.EffectiveStartDate) {
				return violation("versions overlap or leave a gap")
			}
		}
	}
	if len(rows) > 0 && numActive == 0 {
		return violation("no active row")
	}
	return nil
}

package etlerror

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

func TestIsRetryable(t *testing.T) {
	g := NewGomegaWithT(t)
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"extraction", &ExtractionError{Table: "users", Err: fmt.Errorf("boom")}, true},
		{"wrapped build", errors.Wrap(&BuildError{Table: "user_profiling", Err: fmt.Errorf("boom")}, "attempt 1"), true},
		{"merge", &MergeError{Err: fmt.Errorf("disk full")}, true},
		{"duplicate key", &DuplicateKeyError{Table: "user_profiling", Key: "1"}, false},
		{"invariant", errors.Wrap(&InvariantViolation{Table: "t", Key: "1", Reason: "two active rows"}, "load"), false},
		{"replay", &ReplayConflictError{Table: "t", Key: "1", RunDate: d, ActiveStart: d}, false},
		{"locked", &RunLockedError{RunDate: d, Owner: "x"}, false},
		{"cancelled extraction", &ExtractionError{Table: "users", Err: context.Canceled}, false},
		{"untyped", fmt.Errorf("something else"), false},
	}
	for _, c := range cases {
		g.Expect(IsRetryable(c.err)).To(Equal(c.expected), c.name)
	}
}

func TestStage(t *testing.T) {
	g := NewGomegaWithT(t)
	g.Expect(Stage(errors.Wrap(&ExtractionError{Table: "users"}, "x"))).To(Equal(StageExtract))
	g.Expect(Stage(&BuildError{Table: "t"})).To(Equal(StageBuild))
	g.Expect(Stage(&MergeError{})).To(Equal(StageMerge))
	g.Expect(Stage(&DuplicateKeyError{})).To(Equal(""))
}

func TestExtractionErrorMessage(t *testing.T) {
	g := NewGomegaWithT(t)
	err := &ExtractionError{Table: "transactions", Column: "Transaction_Amount", Row: 3, Err: fmt.Errorf("bad decimal")}
	g.Expect(err.Error()).To(Equal(`extraction failed for table "transactions" column "Transaction_Amount" row 3: bad decimal`))
}

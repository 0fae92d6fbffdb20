package orchestrator

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/gomega"
)

func TestStateTransitions(t *testing.T) {
	g := NewGomegaWithT(t)
	g.Expect(StatePending.CanTransitionTo(StateExtracting)).To(BeTrue())
	g.Expect(StateExtracting.CanTransitionTo(StateBuilding)).To(BeTrue())
	g.Expect(StateBuilding.CanTransitionTo(StateMerging)).To(BeTrue())
	g.Expect(StateMerging.CanTransitionTo(StateSucceeded)).To(BeTrue())
	g.Expect(StateBuilding.CanTransitionTo(StateFailed)).To(BeTrue())
	g.Expect(StatePending.CanTransitionTo(StateMerging)).To(BeFalse())
	g.Expect(StateSucceeded.CanTransitionTo(StateFailed)).To(BeFalse())
	g.Expect(StateFailed.CanTransitionTo(StateExtracting)).To(BeFalse(), "a failed run date is never retried automatically")
	g.Expect(StateAbandoned.IsTerminal()).To(BeTrue())
	g.Expect(StateMerging.IsTerminal()).To(BeFalse())
}

func TestStateNames(t *testing.T) {
	g := NewGomegaWithT(t)
	for _, s := range []State{StatePending, StateExtracting, StateBuilding, StateMerging, StateSucceeded, StateFailed, StateAbandoned} {
		parsed, err := ParseState(s.String())
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(parsed).To(Equal(s))
	}
	_, err := ParseState("")
	g.Expect(err).To(HaveOccurred())
	b, err := json.Marshal(struct {
		State State `json:"state"`
	}{StateMerging})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(b)).To(Equal(`{"state":"MERGING"}`))
	_, err = json.Marshal(State(99))
	g.Expect(err).To(HaveOccurred())
}

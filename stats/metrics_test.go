package stats

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/relloyd/scdpipe/components"
	tabledefinition "github.com/relloyd/scdpipe/table-definition"
)

func TestMetrics(t *testing.T) {
	g := NewGomegaWithT(t)
	m := NewMetrics()
	runDate := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	m.AttemptFinished("extract", OutcomeRetrying)
	m.AttemptFinished("merge", OutcomeSucceeded)
	m.RunFinished(OutcomeSucceeded, runDate)
	m.Merged([]*components.MergePlan{
		{Table: tabledefinition.MembershipSummary, Stats: components.MergeStats{Inserted: 2, Closed: 1}},
	})
	g.Expect(testutil.ToFloat64(m.Runs.WithLabelValues(OutcomeSucceeded))).To(Equal(1.0))
	g.Expect(testutil.ToFloat64(m.Attempts.WithLabelValues("extract", OutcomeRetrying))).To(Equal(1.0))
	g.Expect(testutil.ToFloat64(m.Mutations.WithLabelValues("membership_summary", "inserted"))).To(Equal(2.0))
	g.Expect(testutil.ToFloat64(m.Mutations.WithLabelValues("membership_summary", "closed"))).To(Equal(1.0))
	g.Expect(testutil.ToFloat64(m.LastSuccess)).To(Equal(float64(runDate.Unix())))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	g.Expect(rec.Code).To(Equal(200))
	g.Expect(rec.Body.String()).To(ContainSubstring(`scdpipe_runs_total{outcome="succeeded"} 1`))
}

func TestMetricsNil(t *testing.T) {
	g := NewGomegaWithT(t)
	var m *Metrics
	g.Expect(func() {
		m.RunFinished(OutcomeFailed, time.Now())
		m.AttemptFinished("merge", OutcomeFailed)
		m.StageFinished("merge", time.Second)
		m.Merged(nil)
	}).NotTo(Panic())
	g.Expect(m.Registry()).To(BeNil())
}

func TestStageWatcher(t *testing.T) {
	g := NewGomegaWithT(t)
	clock := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	m := NewMetrics()
	w := NewStageWatcher(logrus.New(), m, now)
	stopExtract := w.Start("extract")
	clock = clock.Add(2 * time.Second)
	stopExtract("done")
	w.Start("build")
	stats := w.GetStats()
	g.Expect(stats).To(HaveLen(2))
	g.Expect(stats[0].Elapsed).To(Equal(2 * time.Second))
	g.Expect(stats[0].StatusText).To(Equal("done"))
	g.Expect(stats[1].IsRunning).To(BeTrue())
	g.Expect(w.String()).To(Equal("extract=2s build=running"))
	g.Expect(testutil.CollectAndCount(m.StageDuration)).To(Equal(1))
	g.Expect(strings.Count(w.String(), "=")).To(Equal(2))
}

package stats

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cevaris/ordered_map"

	"github.com/relloyd/scdpipe/logger"
)

// StageWatcher times the stages of one attempt in the order they started.
type StageWatcher struct {
	log     logger.Logger
	metrics *Metrics
	now     func() time.Time
	mu      sync.Mutex
	stages  *ordered_map.OrderedMap // stage name to *StageStats
}

type StageStats struct {
	Stage      string        `json:"stage"`
	StartTime  time.Time     `json:"startTime"`
	Elapsed    time.Duration `json:"elapsed"`
	IsRunning  bool          `json:"isRunning"`
	StatusText string        `json:"statusText"`
}

// NewStageWatcher returns a watcher that also observes each finished stage in metrics, which may be nil.
func NewStageWatcher(log logger.Logger, metrics *Metrics, now func() time.Time) *StageWatcher {
	if now == nil {
		now = time.Now
	}
	return &StageWatcher{log: log, metrics: metrics, now: now, stages: ordered_map.NewOrderedMap()}
}

// Start records the start of stage and returns a func that stops it with the given status text.
func (w *StageWatcher) Start(stage string) func(status string) {
	w.mu.Lock()
	s := &StageStats{Stage: stage, StartTime: w.now(), IsRunning: true, StatusText: "running"}
	w.stages.Set(stage, s)
	w.mu.Unlock()
	w.log.Debug("stage ", stage, " started")
	return func(status string) {
		w.mu.Lock()
		s.Elapsed = w.now().Sub(s.StartTime)
		s.IsRunning = false
		s.StatusText = status
		w.mu.Unlock()
		w.metrics.StageFinished(stage, s.Elapsed)
		w.log.Debug("stage ", stage, " ", status, " after ", s.Elapsed)
	}
}

// GetStats returns a copy of every stage in start order.
func (w *StageWatcher) GetStats() []StageStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	retval := make([]StageStats, 0, w.stages.Len())
	iter := w.stages.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, *kv.Value.(*StageStats))
	}
	return retval
}

// String renders the stages as "extract=1.2s build=30ms".
func (w *StageWatcher) String() string {
	parts := make([]string, 0)
	for _, s := range w.GetStats() {
		if s.IsRunning {
			parts = append(parts, fmt.Sprintf("%v=running", s.Stage))
			continue
		}
		parts = append(parts, fmt.Sprintf("%v=%v", s.Stage, s.Elapsed))
	}
	return strings.Join(parts, " ")
}

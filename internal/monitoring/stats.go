package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/fieldheat/internal/timeutil"
)

// StageSnapshot summarises the calls recorded for one pipeline stage.
type StageSnapshot struct {
	Stage        string  `json:"stage"`
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`
}

type stageCounter struct {
	calls    int
	failures int
	total    time.Duration
	max      time.Duration
}

// StageStats accumulates call counts and latencies per named stage.
// Safe for concurrent use.
type StageStats struct {
	mu     sync.Mutex
	clock  timeutil.Clock
	stages map[string]*stageCounter
}

// NewStageStats creates an empty recorder. A nil clock uses the wall clock.
func NewStageStats(clock timeutil.Clock) *StageStats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &StageStats{clock: clock, stages: make(map[string]*stageCounter)}
}

// Start begins timing a call to stage. The returned function records the
// call; pass the call's error so failures are counted.
func (s *StageStats) Start(stage string) func(err error) {
	if s == nil {
		return func(error) {}
	}
	began := s.clock.Now()
	return func(err error) {
		s.Record(stage, s.clock.Since(began), err != nil)
	}
}

// Record adds one call of the given latency to stage.
func (s *StageStats) Record(stage string, latency time.Duration, failed bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.stages[stage]
	if !ok {
		c = &stageCounter{}
		s.stages[stage] = c
	}
	c.calls++
	c.total += latency
	if latency > c.max {
		c.max = latency
	}
	if failed {
		c.failures++
	}
}

// Snapshot returns the per-stage summaries sorted by stage name.
func (s *StageStats) Snapshot() []StageSnapshot {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StageSnapshot, 0, len(s.stages))
	for name, c := range s.stages {
		snap := StageSnapshot{
			Stage:        name,
			Calls:        c.calls,
			Failures:     c.failures,
			MaxLatencyMs: float64(c.max) / float64(time.Millisecond),
		}
		if c.calls > 0 {
			snap.AvgLatencyMs = float64(c.total) / float64(c.calls) / float64(time.Millisecond)
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// LogSummary writes one line per stage through Logf.
func (s *StageStats) LogSummary() {
	for _, snap := range s.Snapshot() {
		Logf("stage %-10s calls=%d failures=%d avg=%.2fms max=%.2fms",
			snap.Stage, snap.Calls, snap.Failures, snap.AvgLatencyMs, snap.MaxLatencyMs)
	}
}

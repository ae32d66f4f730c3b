package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/fieldheat/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageStatsStart(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	stats := NewStageStats(clock)

	done := stats.Start("density")
	clock.Advance(20 * time.Millisecond)
	done(nil)

	done = stats.Start("density")
	clock.Advance(40 * time.Millisecond)
	done(errors.New("boom"))

	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "density", snap[0].Stage)
	assert.Equal(t, 2, snap[0].Calls)
	assert.Equal(t, 1, snap[0].Failures)
	assert.InDelta(t, 30.0, snap[0].AvgLatencyMs, 1e-9)
	assert.InDelta(t, 40.0, snap[0].MaxLatencyMs, 1e-9)
}

func TestStageStatsSortedAndConcurrent(t *testing.T) {
	stats := NewStageStats(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stage := "kinematics"
			if i%2 == 0 {
				stage = "ingest"
			}
			stats.Record(stage, time.Millisecond, false)
		}(i)
	}
	wg.Wait()

	snap := stats.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "ingest", snap[0].Stage)
	assert.Equal(t, "kinematics", snap[1].Stage)
	assert.Equal(t, 50, snap[0].Calls+snap[1].Calls)
}

func TestStageStatsNilSafe(t *testing.T) {
	var stats *StageStats
	stats.Start("x")(nil)
	stats.Record("x", time.Second, true)
	assert.Nil(t, stats.Snapshot())
}

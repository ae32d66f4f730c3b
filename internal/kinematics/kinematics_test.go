package kinematics

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/fieldheat/internal/config"
	"github.com/banshee-data/fieldheat/internal/ingest"
	"github.com/banshee-data/fieldheat/internal/units"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	frame int64
	id    int64
	t     float64
	x, y  float64
	conf  float64
}

func dataset(samples ...sample) *ingest.Dataset {
	recs := make([]ingest.Record, len(samples))
	for i, s := range samples {
		recs[i] = ingest.Record{
			FrameID:    ingest.SomeID(s.frame),
			EntityID:   ingest.SomeID(s.id),
			TimestampS: s.t,
			CX:         s.x,
			CY:         s.y,
			Confidence: s.conf,
		}
	}
	return ingest.NewDataset(ingest.SchemaBoundingBox, recs)
}

func smoothedConfig(window int) Config {
	cfg := ConfigFromAnalytics(config.EmptyAnalyticsConfig())
	cfg.Mode = ModeSmoothed
	cfg.Window = window
	return cfg
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("raw")
	require.NoError(t, err)
	assert.Equal(t, ModeRaw, m)

	m, err = ParseMode("smoothed")
	require.NoError(t, err)
	assert.Equal(t, ModeSmoothed, m)
	assert.Equal(t, units.Metric, m.Units())
	assert.Equal(t, 2, m.MinSamples())

	_, err = ParseMode("fast")
	assert.Error(t, err)

	_, err = Compute(dataset(sample{1, 1, 0, 0, 0, 1}), Config{Mode: "fast"})
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, ModeRaw, cfg.Mode)
	assert.Equal(t, 0.05, cfg.MetresPerUnit)
	assert.Equal(t, 8.0, cfg.MaxSpeedMps)
	assert.Equal(t, 5, cfg.Window)
	assert.Equal(t, 0.0, cfg.MinConfidence)
}

func TestRawThreeFourFive(t *testing.T) {
	t.Parallel()

	ds := dataset(
		sample{frame: 1, id: 7, t: 0, x: 0, y: 0, conf: 0.5},
		sample{frame: 2, id: 7, t: 1, x: 3, y: 4, conf: 0.9},
	)
	profiles, err := Compute(ds, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, int64(7), p.EntityID)
	assert.Equal(t, units.Pixel, p.Units)
	assert.Equal(t, 5.0, p.TotalDistance)
	assert.Equal(t, 5.0, p.AverageSpeed)
	assert.Equal(t, 5.0, p.MaxSpeed)
	assert.Equal(t, 2, p.FrameCount)
	assert.Equal(t, 1.0, p.TotalTimeS)
	require.NotNil(t, p.Participation)
	assert.Equal(t, 1.0, *p.Participation)
	require.NotNil(t, p.Confidence)
	assert.InDelta(t, 0.7, p.Confidence.Mean, 1e-12)
	assert.Equal(t, 0.5, p.Confidence.Min)
	assert.Equal(t, 0.9, p.Confidence.Max)
	assert.Nil(t, p.AverageSpeedConverted)
	assert.Empty(t, p.Smoothed)
}

func TestRawStepRules(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	ds := dataset(
		sample{frame: 1, id: 1, t: 0, x: 0, y: 0, conf: nan},
		sample{frame: 2, id: 1, t: 0, x: 6, y: 8, conf: nan},    // dt = 0: distance only
		sample{frame: 3, id: 1, t: 2, x: 6, y: 12, conf: nan},   // 4 px over 2 s
		sample{frame: 4, id: 1, t: 2.5, x: 6, y: 22, conf: nan}, // 10 px over 0.5 s
		sample{frame: 8, id: 2, t: 0, x: 0, y: 0, conf: 0.4},
	)
	profiles, err := Compute(ds, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	p := profiles[0]
	assert.Equal(t, 24.0, p.TotalDistance)
	assert.Equal(t, 11.0, p.AverageSpeed) // mean(2, 20)
	assert.Equal(t, 20.0, p.MaxSpeed)
	assert.Equal(t, 2.5, p.TotalTimeS)
	assert.Equal(t, 0.5, *p.Participation)
	assert.Nil(t, p.Confidence)

	single := profiles[1]
	assert.Equal(t, int64(2), single.EntityID)
	assert.Equal(t, 1, single.FrameCount)
	assert.Equal(t, 0.0, single.TotalDistance)
	assert.Equal(t, 0.0, single.AverageSpeed)
	assert.Equal(t, 0.125, *single.Participation)
}

func TestRawParticipationWithoutPositiveFrames(t *testing.T) {
	t.Parallel()

	ds := dataset(sample{frame: 0, id: 1, t: 0, x: 1, y: 1, conf: 1})
	profiles, err := Compute(ds, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, 0.0, *profiles[0].Participation)
}

func TestSmoothedSpeedThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	// 160 px * 0.05 = 8.0 m in 1 s is kept; 161 px = 8.05 m/s is dropped.
	ds := dataset(
		sample{frame: 1, id: 3, t: 0, x: 0, y: 0, conf: 1},
		sample{frame: 2, id: 3, t: 1, x: 160, y: 0, conf: 1},
		sample{frame: 3, id: 3, t: 2, x: 321, y: 0, conf: 1},
	)
	profiles, err := Compute(ds, smoothedConfig(1))
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, units.Metric, p.Units)
	assert.Equal(t, 8.0, p.TotalDistance)
	assert.Equal(t, 8.0, p.MaxSpeed)
	assert.Equal(t, 4.0, p.AverageSpeed) // 8 m over 2 s elapsed
	assert.Equal(t, 1, p.AcceptedSteps)
	assert.Equal(t, 1, p.RejectedSteps)
	assert.Equal(t, units.KMPH, p.SpeedUnits)
	require.NotNil(t, p.MaxSpeedConverted)
	assert.InDelta(t, 28.8, *p.MaxSpeedConverted, 1e-9)
	assert.InDelta(t, 14.4, *p.AverageSpeedConverted, 1e-9)
}

func TestSmoothedSpeedUnits(t *testing.T) {
	t.Parallel()

	// 8 m/s peak and 4 m/s average, as above.
	ds := dataset(
		sample{frame: 1, id: 3, t: 0, x: 0, y: 0, conf: 1},
		sample{frame: 2, id: 3, t: 1, x: 160, y: 0, conf: 1},
		sample{frame: 3, id: 3, t: 2, x: 321, y: 0, conf: 1},
	)
	tests := []struct {
		unit    string
		wantMax float64
		wantAvg float64
	}{
		{"", 28.8, 14.4},
		{units.KMPH, 28.8, 14.4},
		{units.KPH, 28.8, 14.4},
		{units.MPS, 8.0, 4.0},
		{units.MPH, 8.0 * 2.2369362920544, 4.0 * 2.2369362920544},
	}
	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			cfg := smoothedConfig(1)
			cfg.SpeedUnits = tt.unit
			profiles, err := Compute(ds, cfg)
			require.NoError(t, err)
			require.Len(t, profiles, 1)

			p := profiles[0]
			if tt.unit == "" {
				assert.Equal(t, units.KMPH, p.SpeedUnits)
			} else {
				assert.Equal(t, tt.unit, p.SpeedUnits)
			}
			require.NotNil(t, p.MaxSpeedConverted)
			require.NotNil(t, p.AverageSpeedConverted)
			assert.InDelta(t, tt.wantMax, *p.MaxSpeedConverted, 1e-9)
			assert.InDelta(t, tt.wantAvg, *p.AverageSpeedConverted, 1e-9)
			assert.Equal(t, 8.0, p.MaxSpeed)
		})
	}
}

func TestConfigFromAnalyticsSpeedUnits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, units.KMPH, DefaultConfig().SpeedUnits)

	cfg := config.EmptyAnalyticsConfig()
	mph := units.MPH
	cfg.SpeedUnits = &mph
	assert.Equal(t, units.MPH, ConfigFromAnalytics(cfg).SpeedUnits)
}

func TestSmoothedRejectsZeroDt(t *testing.T) {
	t.Parallel()

	ds := dataset(
		sample{frame: 1, id: 3, t: 1, x: 0, y: 0, conf: 1},
		sample{frame: 2, id: 3, t: 1, x: 10, y: 0, conf: 1},
	)
	profiles, err := Compute(ds, smoothedConfig(1))
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, 0.0, profiles[0].TotalDistance)
	assert.Equal(t, 0.0, profiles[0].AverageSpeed)
	assert.Equal(t, 0.0, profiles[0].MaxSpeed)
	assert.Equal(t, 1, profiles[0].RejectedSteps)
}

func TestMinimumSamplesPerMode(t *testing.T) {
	t.Parallel()

	ds := dataset(
		sample{frame: 1, id: 1, t: 0, x: 0, y: 0, conf: 1},
		sample{frame: 1, id: 2, t: 0, x: 0, y: 0, conf: 1},
		sample{frame: 2, id: 2, t: 1, x: 1, y: 0, conf: 1},
	)

	raw, err := Compute(ds, DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, raw, 2)

	smoothed, err := Compute(ds, smoothedConfig(5))
	require.NoError(t, err)
	require.Len(t, smoothed, 1)
	assert.Equal(t, int64(2), smoothed[0].EntityID)
}

func TestNullEntityExcluded(t *testing.T) {
	t.Parallel()

	ds := ingest.NewDataset(ingest.SchemaTracking, []ingest.Record{
		{FrameID: ingest.SomeID(1), CX: 0, CY: 0, TimestampS: 0, Confidence: 1},
		{FrameID: ingest.SomeID(2), CX: 1, CY: 1, TimestampS: 1, Confidence: 1},
	})
	profiles, err := Compute(ds, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestSmoothPositionsWindowGrows(t *testing.T) {
	t.Parallel()

	var recs []ingest.Record
	for i := 0; i < 6; i++ {
		recs = append(recs, ingest.Record{CX: float64(i * 10), CY: 1})
	}
	got := SmoothPositions(recs, 5)
	want := []Position{{0, 1}, {5, 1}, {10, 1}, {15, 1}, {20, 1}, {30, 1}}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("SmoothPositions() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []Position{{0, 1}, {10, 1}}, SmoothPositions(recs[:2], 0))
}

func TestMinConfidenceFilter(t *testing.T) {
	t.Parallel()

	ds := dataset(
		sample{frame: 1, id: 1, t: 0, x: 0, y: 0, conf: 0.9},
		sample{frame: 2, id: 1, t: 1, x: 100, y: 0, conf: 0.2},
		sample{frame: 3, id: 1, t: 2, x: 3, y: 4, conf: math.NaN()},
	)
	cfg := DefaultConfig()
	cfg.MinConfidence = 0.5
	profiles, err := Compute(ds, cfg)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, 2, profiles[0].FrameCount)
	assert.Equal(t, 5.0, profiles[0].TotalDistance)
	// Participation still uses the unfiltered dataset's max frame.
	assert.InDelta(t, 2.0/3.0, *profiles[0].Participation, 1e-12)
}

func TestComputeIsReproducible(t *testing.T) {
	t.Parallel()

	ds := dataset(
		sample{frame: 1, id: 1, t: 0, x: 0, y: 0, conf: 0.9},
		sample{frame: 2, id: 1, t: 0.04, x: 3, y: 2, conf: 0.8},
		sample{frame: 3, id: 1, t: 0.08, x: 5, y: 6, conf: 0.7},
		sample{frame: 3, id: 4, t: 0.08, x: 50, y: 60, conf: 0.7},
		sample{frame: 4, id: 4, t: 0.12, x: 52, y: 61, conf: 0.6},
	)
	for _, cfg := range []Config{DefaultConfig(), smoothedConfig(5)} {
		a, err := Compute(ds, cfg)
		require.NoError(t, err)
		b, err := Compute(ds, cfg)
		require.NoError(t, err)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("Compute(%s) not reproducible:\n%s", cfg.Mode, diff)
		}
	}
}

func TestProfileJSON(t *testing.T) {
	t.Parallel()

	ds := dataset(
		sample{frame: 1, id: 9, t: 0, x: 0, y: 0, conf: 1},
		sample{frame: 2, id: 9, t: 1, x: 20, y: 0, conf: 1},
	)
	profiles, err := Compute(ds, smoothedConfig(5))
	require.NoError(t, err)
	data, err := json.Marshal(profiles)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"units":"metric"`)
	assert.Contains(t, string(data), `"speed_units":"kmph"`)
	assert.Contains(t, string(data), `"max_speed_converted"`)
	assert.NotContains(t, string(data), `"participation_score"`)
}

func TestPath(t *testing.T) {
	t.Parallel()

	ds := ingest.NewDataset(ingest.SchemaBoundingBox, []ingest.Record{
		{FrameID: ingest.SomeID(2), EntityID: ingest.SomeID(5), TimestampS: 0.08, CX: 3, CY: 4, Confidence: 0.5},
		{FrameID: ingest.SomeID(1), EntityID: ingest.SomeID(5), TimestampS: math.NaN(), CX: 1, CY: 2, Confidence: math.NaN()},
		{FrameID: ingest.SomeID(1), EntityID: ingest.SomeID(6), TimestampS: 0.04, CX: 9, CY: 9, Confidence: 1},
	})

	path, err := Path(ds, 5)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, int64(1), *path[0].FrameID)
	assert.Nil(t, path[0].Timestamp)
	assert.Nil(t, path[0].Confidence)
	assert.Equal(t, 3.0, path[1].X)
	assert.Equal(t, 0.08, *path[1].Timestamp)

	_, err = Path(ds, 42)
	assert.True(t, errors.Is(err, ErrNoSamples))

	all := Paths(ds)
	assert.Len(t, all, 2)
	assert.Len(t, all[6], 1)
}

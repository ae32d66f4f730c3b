package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/fieldheat/internal/config"
	"github.com/banshee-data/fieldheat/internal/fsutil"
	"github.com/banshee-data/fieldheat/internal/ingest"
	"github.com/banshee-data/fieldheat/internal/kinematics"
	"github.com/banshee-data/fieldheat/internal/monitoring"
	"github.com/banshee-data/fieldheat/internal/report"
	"github.com/banshee-data/fieldheat/internal/zones"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	monitoring.SetLogger(nil)
}

func testSettings(t *testing.T) Settings {
	t.Helper()
	cfg := config.EmptyAnalyticsConfig()
	nx, ny := 40, 30
	cfg.GridNX = &nx
	cfg.GridNY = &ny
	s, err := SettingsFromAnalytics(cfg)
	require.NoError(t, err)
	return s
}

// matchCSV has two players crossing the field plus an unidentified detection.
func matchCSV() string {
	var b strings.Builder
	b.WriteString("frame_id,player_id,timestamp_s,x1,y1,x2,y2,cx,cy,w,h,confidence\n")
	for f := 1; f <= 20; f++ {
		ts := float64(f) * 0.04
		fmt.Fprintf(&b, "%d,1,%.2f,0,0,0,0,%d,%d,10,20,0.9\n", f, ts, 100+f*40, 300+f)
		fmt.Fprintf(&b, "%d,2,%.2f,0,0,0,0,%d,%d,10,20,0.8\n", f, ts, 900-f*30, 500-f*5)
	}
	b.WriteString("5,,0.20,0,0,0,0,500,400,10,20,\n")
	return b.String()
}

func loadMatch(t *testing.T) *ingest.Dataset {
	t.Helper()
	tbl, err := ingest.ReadCSV(strings.NewReader(matchCSV()))
	require.NoError(t, err)
	ds, err := ingest.Normalize(tbl)
	require.NoError(t, err)
	return ds
}

func TestSettingsFromAnalytics(t *testing.T) {
	t.Parallel()

	s, err := SettingsFromAnalytics(config.EmptyAnalyticsConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, kinematics.ModeRaw, s.Kinematics.Mode)
	assert.Equal(t, 50.0, s.Zones.Radius)
	assert.Equal(t, s.Field, s.Zones.Field)

	bad := config.EmptyAnalyticsConfig()
	mode := "sideways"
	bad.KinematicsMode = &mode
	_, err = SettingsFromAnalytics(bad)
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	ds := loadMatch(t)
	a, err := Analyze(context.Background(), "match", ds, testSettings(t), nil)
	require.NoError(t, err)

	assert.False(t, a.Empty())
	assert.Equal(t, 41, a.Summary.Records)
	assert.Equal(t, 2, a.Summary.Entities)
	assert.Equal(t, int64(20), a.Summary.MaxFrameID)

	// The unidentified row counts in the overall grid only.
	require.NotNil(t, a.Overall)
	assert.Equal(t, 41, a.Overall.Points)
	require.Len(t, a.Entities, 2)
	assert.Equal(t, 20, a.Entities[0].Grid.Points)
	assert.Equal(t, 20, a.Entities[1].Grid.Points)

	zoneTotal := 0
	for _, z := range zones.All {
		zoneTotal += a.Summary.ZonePoints[z]
	}
	assert.GreaterOrEqual(t, zoneTotal, 41)
	for _, zg := range a.Zones {
		assert.Equal(t, a.Summary.ZonePoints[zg.Zone], zg.Grid.Points)
	}

	require.Len(t, a.Profiles, 2)
	assert.Equal(t, int64(1), a.Profiles[0].EntityID)
	assert.Equal(t, 20, a.Profiles[0].FrameCount)
	assert.Len(t, a.Paths, 2)
	assert.Len(t, a.Paths[2], 20)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	t.Parallel()

	ds := loadMatch(t)
	serial := testSettings(t)
	serial.Workers = 1
	parallel := testSettings(t)
	parallel.Workers = 8

	first, err := Analyze(context.Background(), "m", ds, serial, nil)
	require.NoError(t, err)
	second, err := Analyze(context.Background(), "m", ds, parallel, nil)
	require.NoError(t, err)
	third, err := Analyze(context.Background(), "m", ds, parallel, nil)
	require.NoError(t, err)

	opts := cmp.Options{cmpopts.EquateNaNs()}
	if diff := cmp.Diff(first, second, opts); diff != "" {
		t.Errorf("worker count changed the result (-serial +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(second, third, opts); diff != "" {
		t.Errorf("rerun changed the result:\n%s", diff)
	}
}

func TestAnalyzeNonPositiveWorkers(t *testing.T) {
	t.Parallel()

	ds := loadMatch(t)
	want, err := Analyze(context.Background(), "m", ds, testSettings(t), nil)
	require.NoError(t, err)

	for _, workers := range []int{0, -3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			s := testSettings(t)
			s.Workers = workers

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			type outcome struct {
				a   *report.Analytics
				err error
			}
			done := make(chan outcome, 1)
			go func() {
				a, err := Analyze(ctx, "m", ds, s, nil)
				done <- outcome{a, err}
			}()

			select {
			case got := <-done:
				require.NoError(t, got.err)
				if diff := cmp.Diff(want, got.a, cmpopts.EquateNaNs()); diff != "" {
					t.Errorf("Analyze with %d workers differs:\n%s", workers, diff)
				}
			case <-ctx.Done():
				t.Fatalf("Analyze with %d workers did not return", workers)
			}
		})
	}
}

func TestAnalyzeEmptyDataset(t *testing.T) {
	t.Parallel()

	ds := ingest.NewDataset(ingest.SchemaBoundingBox, nil)
	ds.InputRows = 3
	a, err := Analyze(context.Background(), "empty", ds, testSettings(t), nil)
	require.NoError(t, err)
	assert.True(t, a.Empty())
	assert.Nil(t, a.Overall)
	assert.Empty(t, a.Entities)
	assert.Equal(t, 3, a.Summary.InputRows)

	a, err = Analyze(context.Background(), "nil", nil, testSettings(t), nil)
	require.NoError(t, err)
	assert.True(t, a.Empty())
}

func TestAnalyzeCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Analyze(ctx, "m", loadMatch(t), testSettings(t), nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAnalyzeSmoothedMode(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Kinematics.Mode = kinematics.ModeSmoothed
	a, err := Analyze(context.Background(), "m", loadMatch(t), s, nil)
	require.NoError(t, err)
	require.Len(t, a.Profiles, 2)
	assert.Equal(t, kinematics.ModeSmoothed, a.Profiles[0].Mode)
	assert.Len(t, a.Profiles[0].Smoothed, 20)
	assert.Equal(t, "metric", string(a.Units()))
}

type recordingSink struct {
	mu     sync.Mutex
	labels []string
	failOn string
}

func (s *recordingSink) Name() string { return "recorder" }

func (s *recordingSink) Write(_ context.Context, a *report.Analytics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Label == s.failOn {
		return errors.New("disk full")
	}
	s.labels = append(s.labels, a.Label)
	return nil
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	require.NoError(t, fs.MkdirAll("in", 0755))
	require.NoError(t, fs.WriteFile("in/good.csv", []byte(matchCSV()), 0644))
	require.NoError(t, fs.WriteFile("in/bad.csv", []byte("name,score\nx,1\n"), 0644))
	require.NoError(t, fs.WriteFile("in/blank.csv", []byte("frame_id,cx,cy\n1,,\n"), 0644))
	require.NoError(t, fs.WriteFile("in/other.csv", []byte(matchCSV()), 0644))

	sink := &recordingSink{failOn: "sinkfail"}
	stats := monitoring.NewStageStats(nil)
	runner := NewRunner(testSettings(t), fs, stats, sink)

	results := runner.RunBatch(context.Background(), []Input{
		{Path: "in/good.csv", Label: "good"},
		{Path: "in/bad.csv", Label: "bad"},
		{Path: "in/missing.csv", Label: "missing"},
		{Path: "in/blank.csv", Label: "blank"},
		{Path: "in/other.csv", Label: "good"},
		{Path: "in/other.csv", Label: "sinkfail"},
		{Path: "in/other.csv", Label: "../escape"},
		{Path: "in/other.csv", Label: "other"},
	})
	require.Len(t, results, 8)

	assert.True(t, results[0].OK())
	assert.Equal(t, 41, results[0].Analytics.Summary.Records)

	var schemaErr *ingest.SchemaError
	assert.True(t, errors.As(results[1].Err, &schemaErr))
	assert.Error(t, results[2].Err)

	require.True(t, results[3].OK())
	assert.True(t, results[3].Analytics.Empty())

	assert.ErrorContains(t, results[4].Err, "duplicate label")
	assert.ErrorContains(t, results[5].Err, "disk full")
	assert.Error(t, results[6].Err)
	assert.True(t, results[7].OK())

	assert.Equal(t, 5, Failed(results))
	assert.Equal(t, []string{"good", "blank", "other"}, sink.labels)

	snap := stats.Snapshot()
	require.NotEmpty(t, snap)
	byStage := map[string]monitoring.StageSnapshot{}
	for _, s := range snap {
		byStage[s.Stage] = s
	}
	assert.Equal(t, 6, byStage[StageLoad].Calls)
	assert.Equal(t, 2, byStage[StageLoad].Failures)
	assert.Equal(t, 4, byStage[StageSinkPrefix+"recorder"].Calls)
	assert.Equal(t, 1, byStage[StageSinkPrefix+"recorder"].Failures)
}

func TestRunBatchCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := NewRunner(testSettings(t), fsutil.NewMemoryFileSystem(), nil)
	results := runner.RunBatch(ctx, []Input{{Path: "a.csv", Label: "a"}, {Path: "b.csv", Label: "b"}})
	for _, r := range results {
		assert.True(t, errors.Is(r.Err, context.Canceled))
	}
}

func TestParseInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arg  string
		want Input
	}{
		{"data/match.csv", Input{Path: "data/match.csv", Label: "match"}},
		{"data/match.csv:q1", Input{Path: "data/match.csv", Label: "q1"}},
		{"data/match.csv:", Input{Path: "data/match.csv", Label: "match"}},
		{"archive:v2/match.csv", Input{Path: "archive:v2/match.csv", Label: "match"}},
		{"tracks", Input{Path: "tracks", Label: "tracks"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseInput(tt.arg), "ParseInput(%q)", tt.arg)
	}
}

func TestValidateLabel(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateLabel("match_1"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.Error(t, ValidateLabel(bad), "label %q", bad)
	}
}

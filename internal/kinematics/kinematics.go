// Package kinematics derives per-entity distance and speed profiles from a
// unified dataset.
//
// Two modes are supported and neither is a default hidden from the caller:
//
//   - ModeRaw works in source coordinate units (pixels), with no smoothing
//     or outlier rejection, and also reports participation and confidence.
//   - ModeSmoothed applies a causal moving average, scales steps to metres
//     and drops steps faster than MaxSpeedMps.
//
// Entities without an id never appear in the output.
package kinematics

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/fieldheat/internal/config"
	"github.com/banshee-data/fieldheat/internal/ingest"
	"github.com/banshee-data/fieldheat/internal/units"
)

// Mode selects the kinematics formula.
type Mode string

const (
	ModeRaw      Mode = config.ModeRaw
	ModeSmoothed Mode = config.ModeSmoothed
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRaw, ModeSmoothed:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown kinematics mode %q (want %q or %q)", s, ModeRaw, ModeSmoothed)
}

// MinSamples returns the fewest records an entity needs in mode m.
func (m Mode) MinSamples() int {
	if m == ModeSmoothed {
		return 2
	}
	return 1
}

// Units returns the unit system profiles in mode m are expressed in.
func (m Mode) Units() units.System {
	if m == ModeSmoothed {
		return units.Metric
	}
	return units.Pixel
}

// Config holds the kinematics settings for one run.
type Config struct {
	Mode Mode

	// Smoothed mode only.
	MetresPerUnit float64
	MaxSpeedMps   float64
	Window        int
	SpeedUnits    string // one of units.ValidUnits; empty means km/h

	// MinConfidence drops records whose confidence is below it before any
	// entity is profiled. Records without a confidence are kept. 0 disables.
	MinConfidence float64
}

// DefaultConfig returns the raw-mode defaults.
func DefaultConfig() Config {
	return ConfigFromAnalytics(config.EmptyAnalyticsConfig())
}

// ConfigFromAnalytics builds the kinematics settings from the config.
func ConfigFromAnalytics(cfg *config.AnalyticsConfig) Config {
	return Config{
		Mode:          Mode(cfg.GetKinematicsMode()),
		MetresPerUnit: cfg.GetMetresPerUnit(),
		MaxSpeedMps:   cfg.GetMaxSpeedMps(),
		Window:        cfg.GetSmoothingWindow(),
		MinConfidence: cfg.GetMinConfidence(),
		SpeedUnits:    cfg.GetSpeedUnits(),
	}
}

// Position is one smoothed sample.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ConfidenceSummary describes the finite confidences of one entity.
type ConfidenceSummary struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Profile is the kinematic summary of one entity. Distances and speeds are
// in the units named by Units.
type Profile struct {
	EntityID int64        `json:"entity_id"`
	Mode     Mode         `json:"mode"`
	Units    units.System `json:"units"`

	FrameCount    int     `json:"frame_count"`
	TotalTimeS    float64 `json:"total_time_s"`
	TotalDistance float64 `json:"total_distance"`
	AverageSpeed  float64 `json:"average_speed"`
	MaxSpeed      float64 `json:"max_speed"`

	// Raw mode.
	Participation *float64           `json:"participation_score,omitempty"`
	Confidence    *ConfidenceSummary `json:"confidence,omitempty"`

	// Smoothed mode. The converted speeds are in SpeedUnits.
	SpeedUnits            string     `json:"speed_units,omitempty"`
	AverageSpeedConverted *float64   `json:"average_speed_converted,omitempty"`
	MaxSpeedConverted     *float64   `json:"max_speed_converted,omitempty"`
	AcceptedSteps         int        `json:"accepted_steps,omitempty"`
	RejectedSteps         int        `json:"rejected_steps,omitempty"`
	Smoothed              []Position `json:"smoothed_positions,omitempty"`
}

// Compute profiles every identified entity in ds, in ascending id order.
// Entities with fewer than the mode's minimum samples are omitted.
func Compute(ds *ingest.Dataset, cfg Config) ([]Profile, error) {
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if ds.Empty() {
		return nil, nil
	}

	src := ds
	if cfg.MinConfidence > 0 {
		src = ds.Filter(func(r ingest.Record) bool {
			return math.IsNaN(r.Confidence) || r.Confidence >= cfg.MinConfidence
		})
	}

	maxFrame, _ := ds.MaxFrameID()
	groups := src.ByEntity()
	ids := make([]int64, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	profiles := make([]Profile, 0, len(ids))
	for _, id := range ids {
		recs := groups[id]
		if len(recs) < cfg.Mode.MinSamples() {
			continue
		}
		switch cfg.Mode {
		case ModeSmoothed:
			profiles = append(profiles, computeSmoothed(id, recs, cfg))
		default:
			profiles = append(profiles, computeRaw(id, recs, maxFrame))
		}
	}
	return profiles, nil
}

// timeSpan returns max-min over the finite timestamps, 0 when there are none.
func timeSpan(recs []ingest.Record) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range recs {
		if math.IsNaN(r.TimestampS) || math.IsInf(r.TimestampS, 0) {
			continue
		}
		lo = math.Min(lo, r.TimestampS)
		hi = math.Max(hi, r.TimestampS)
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

func ptr(v float64) *float64 { return &v }

package pipeline

import (
	"fmt"

	"github.com/banshee-data/fieldheat/internal/config"
	"github.com/banshee-data/fieldheat/internal/geometry"
	"github.com/banshee-data/fieldheat/internal/kinematics"
	"github.com/banshee-data/fieldheat/internal/zones"
)

// Settings is the immutable per-run configuration of the engine.
type Settings struct {
	Field      geometry.Field
	Zones      zones.Partitioner
	Kinematics kinematics.Config

	// Workers bounds the per-entity and per-zone fan-out. Values below 1
	// run the grids one at a time.
	Workers int
	// UniformWeights counts each detection once instead of by confidence.
	UniformWeights bool
}

// SettingsFromAnalytics resolves and validates the run settings.
func SettingsFromAnalytics(cfg *config.AnalyticsConfig) (Settings, error) {
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	field := geometry.FieldConfigFromAnalytics(cfg)
	if err := field.Validate(); err != nil {
		return Settings{}, err
	}
	kin := kinematics.ConfigFromAnalytics(cfg)
	if _, err := kinematics.ParseMode(string(kin.Mode)); err != nil {
		return Settings{}, err
	}
	s := Settings{
		Field:      field,
		Zones:      zones.ConfigFromAnalytics(cfg, field),
		Kinematics: kin,
		Workers:    cfg.GetWorkers(),
	}
	if s.Workers < 1 {
		return Settings{}, fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	return s, nil
}

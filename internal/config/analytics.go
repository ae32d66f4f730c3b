package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/fieldheat/internal/units"
)

// DefaultConfigPath is the path to the canonical analytics defaults file.
const DefaultConfigPath = "config/analytics.defaults.json"

// EnvPrefix prefixes every environment override read by ApplyEnv.
const EnvPrefix = "FIELDHEAT_"

// Kinematics modes accepted by KinematicsMode.
const (
	ModeRaw      = "raw"
	ModeSmoothed = "smoothed"
)

// AnalyticsConfig is the root configuration for one pipeline invocation.
// Every field is optional; the Get* methods supply defaults, so a partial
// JSON file or an empty struct is always usable.
type AnalyticsConfig struct {
	// Field geometry (metres)
	SemiMajorMeters *float64 `json:"semi_major_m,omitempty"`
	SemiMinorMeters *float64 `json:"semi_minor_m,omitempty"`

	// Density grid
	GridNX         *int     `json:"grid_nx,omitempty"`
	GridNY         *int     `json:"grid_ny,omitempty"`
	SmoothingSigma *float64 `json:"smoothing_sigma,omitempty"` // in grid cells

	// Zones
	ZoneRadiusMeters *float64 `json:"zone_radius_m,omitempty"`

	// Kinematics
	KinematicsMode  *string  `json:"kinematics_mode,omitempty"` // "raw" or "smoothed"
	MetresPerUnit   *float64 `json:"metres_per_unit,omitempty"`
	MaxSpeedMps     *float64 `json:"max_speed_mps,omitempty"`
	SmoothingWindow *int     `json:"smoothing_window,omitempty"`
	MinConfidence   *float64 `json:"min_confidence,omitempty"`
	SpeedUnits      *string  `json:"speed_units,omitempty"` // smoothed-mode display speeds

	// Execution and output
	Workers    *int    `json:"workers,omitempty"`
	OutDir     *string `json:"out_dir,omitempty"`
	RenderPNG  *bool   `json:"render_png,omitempty"`
	RenderHTML *bool   `json:"render_html,omitempty"`
	StorePath  *string `json:"store_path,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalyticsConfig returns a config with every field unset.
func EmptyAnalyticsConfig() *AnalyticsConfig {
	return &AnalyticsConfig{}
}

// DefaultAnalyticsConfig returns a config with every field explicitly set to
// its default value.
func DefaultAnalyticsConfig() *AnalyticsConfig {
	e := EmptyAnalyticsConfig()
	return &AnalyticsConfig{
		SemiMajorMeters:  ptrFloat64(e.GetSemiMajorMeters()),
		SemiMinorMeters:  ptrFloat64(e.GetSemiMinorMeters()),
		GridNX:           ptrInt(e.GetGridNX()),
		GridNY:           ptrInt(e.GetGridNY()),
		SmoothingSigma:   ptrFloat64(e.GetSmoothingSigma()),
		ZoneRadiusMeters: ptrFloat64(e.GetZoneRadiusMeters()),
		KinematicsMode:   ptrString(e.GetKinematicsMode()),
		MetresPerUnit:    ptrFloat64(e.GetMetresPerUnit()),
		MaxSpeedMps:      ptrFloat64(e.GetMaxSpeedMps()),
		SmoothingWindow:  ptrInt(e.GetSmoothingWindow()),
		MinConfidence:    ptrFloat64(e.GetMinConfidence()),
		SpeedUnits:       ptrString(e.GetSpeedUnits()),
		Workers:          ptrInt(e.GetWorkers()),
		OutDir:           ptrString(e.GetOutDir()),
		RenderPNG:        ptrBool(e.GetRenderPNG()),
		RenderHTML:       ptrBool(e.GetRenderHTML()),
		StorePath:        ptrString(e.GetStorePath()),
	}
}

// LoadAnalyticsConfig loads an AnalyticsConfig from a JSON file.
// The file must have a .json extension and be at most 1MB. Fields omitted
// from the file keep their defaults.
func LoadAnalyticsConfig(path string) (*AnalyticsConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalyticsConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from FIELDHEAT_* variables returned by lookup
// (normally os.LookupEnv). Variable names are the upper-cased JSON keys,
// e.g. FIELDHEAT_SMOOTHING_SIGMA. Malformed values are reported, not ignored.
func (c *AnalyticsConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	floatVars := map[string]**float64{
		"SEMI_MAJOR_M":    &c.SemiMajorMeters,
		"SEMI_MINOR_M":    &c.SemiMinorMeters,
		"SMOOTHING_SIGMA": &c.SmoothingSigma,
		"ZONE_RADIUS_M":   &c.ZoneRadiusMeters,
		"METRES_PER_UNIT": &c.MetresPerUnit,
		"MAX_SPEED_MPS":   &c.MaxSpeedMps,
		"MIN_CONFIDENCE":  &c.MinConfidence,
	}
	for key, dst := range floatVars {
		raw, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = ptrFloat64(v)
	}

	intVars := map[string]**int{
		"GRID_NX":          &c.GridNX,
		"GRID_NY":          &c.GridNY,
		"SMOOTHING_WINDOW": &c.SmoothingWindow,
		"WORKERS":          &c.Workers,
	}
	for key, dst := range intVars {
		raw, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = ptrInt(v)
	}

	boolVars := map[string]**bool{
		"RENDER_PNG":  &c.RenderPNG,
		"RENDER_HTML": &c.RenderHTML,
	}
	for key, dst := range boolVars {
		raw, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = ptrBool(v)
	}

	stringVars := map[string]**string{
		"KINEMATICS_MODE": &c.KinematicsMode,
		"SPEED_UNITS":     &c.SpeedUnits,
		"OUT_DIR":         &c.OutDir,
		"STORE_PATH":      &c.StorePath,
	}
	for key, dst := range stringVars {
		if raw, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(raw) != "" {
			*dst = ptrString(strings.TrimSpace(raw))
		}
	}

	return c.Validate()
}

// Validate checks that the configured values are usable.
func (c *AnalyticsConfig) Validate() error {
	if c.SemiMajorMeters != nil && !(*c.SemiMajorMeters > 0) {
		return fmt.Errorf("semi_major_m must be positive, got %f", *c.SemiMajorMeters)
	}
	if c.SemiMinorMeters != nil && !(*c.SemiMinorMeters > 0) {
		return fmt.Errorf("semi_minor_m must be positive, got %f", *c.SemiMinorMeters)
	}
	if c.GridNX != nil && *c.GridNX < 1 {
		return fmt.Errorf("grid_nx must be at least 1, got %d", *c.GridNX)
	}
	if c.GridNY != nil && *c.GridNY < 1 {
		return fmt.Errorf("grid_ny must be at least 1, got %d", *c.GridNY)
	}
	if c.ZoneRadiusMeters != nil && *c.ZoneRadiusMeters < 0 {
		return fmt.Errorf("zone_radius_m must be non-negative, got %f", *c.ZoneRadiusMeters)
	}
	if c.KinematicsMode != nil {
		switch *c.KinematicsMode {
		case ModeRaw, ModeSmoothed:
		default:
			return fmt.Errorf("kinematics_mode must be %q or %q, got %q", ModeRaw, ModeSmoothed, *c.KinematicsMode)
		}
	}
	if c.MetresPerUnit != nil && !(*c.MetresPerUnit > 0) {
		return fmt.Errorf("metres_per_unit must be positive, got %f", *c.MetresPerUnit)
	}
	if c.MaxSpeedMps != nil && !(*c.MaxSpeedMps > 0) {
		return fmt.Errorf("max_speed_mps must be positive, got %f", *c.MaxSpeedMps)
	}
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
	}
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("speed_units must be one of %s, got %q", strings.Join(units.ValidUnits, ", "), *c.SpeedUnits)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

// GetSemiMajorMeters returns the field semi-major axis (half of 159.5m).
func (c *AnalyticsConfig) GetSemiMajorMeters() float64 {
	if c.SemiMajorMeters == nil {
		return 159.5 / 2
	}
	return *c.SemiMajorMeters
}

// GetSemiMinorMeters returns the field semi-minor axis (half of 128.8m).
func (c *AnalyticsConfig) GetSemiMinorMeters() float64 {
	if c.SemiMinorMeters == nil {
		return 128.8 / 2
	}
	return *c.SemiMinorMeters
}

// GetGridNX returns the number of grid columns.
func (c *AnalyticsConfig) GetGridNX() int {
	if c.GridNX == nil {
		return 200
	}
	return *c.GridNX
}

// GetGridNY returns the number of grid rows.
func (c *AnalyticsConfig) GetGridNY() int {
	if c.GridNY == nil {
		return 150
	}
	return *c.GridNY
}

// GetSmoothingSigma returns the Gaussian sigma in grid cells.
func (c *AnalyticsConfig) GetSmoothingSigma() float64 {
	if c.SmoothingSigma == nil {
		return 2.0
	}
	return *c.SmoothingSigma
}

// GetZoneRadiusMeters returns the capture radius around each goal focus.
func (c *AnalyticsConfig) GetZoneRadiusMeters() float64 {
	if c.ZoneRadiusMeters == nil {
		return 50
	}
	return *c.ZoneRadiusMeters
}

// GetKinematicsMode returns the kinematics mode name.
func (c *AnalyticsConfig) GetKinematicsMode() string {
	if c.KinematicsMode == nil {
		return ModeRaw
	}
	return *c.KinematicsMode
}

// GetMetresPerUnit returns the source-unit to metre scale for smoothed kinematics.
func (c *AnalyticsConfig) GetMetresPerUnit() float64 {
	if c.MetresPerUnit == nil {
		return 0.05
	}
	return *c.MetresPerUnit
}

// GetMaxSpeedMps returns the step speed above which a step is rejected.
func (c *AnalyticsConfig) GetMaxSpeedMps() float64 {
	if c.MaxSpeedMps == nil {
		return 8.0
	}
	return *c.MaxSpeedMps
}

// GetSmoothingWindow returns the causal moving-average window length.
func (c *AnalyticsConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 5
	}
	return *c.SmoothingWindow
}

// GetMinConfidence returns the kinematics confidence floor (0 disables it).
func (c *AnalyticsConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0
	}
	return *c.MinConfidence
}

// GetSpeedUnits returns the unit smoothed-mode speeds are converted to.
func (c *AnalyticsConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil {
		return units.KMPH
	}
	return *c.SpeedUnits
}

// GetWorkers returns the worker limit for per-entity and per-zone grids.
func (c *AnalyticsConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetOutDir returns the output root directory.
func (c *AnalyticsConfig) GetOutDir() string {
	if c.OutDir == nil || *c.OutDir == "" {
		return "outputs"
	}
	return *c.OutDir
}

// GetRenderPNG reports whether PNG heatmaps are written.
func (c *AnalyticsConfig) GetRenderPNG() bool {
	if c.RenderPNG == nil {
		return true
	}
	return *c.RenderPNG
}

// GetRenderHTML reports whether the HTML report is written.
func (c *AnalyticsConfig) GetRenderHTML() bool {
	if c.RenderHTML == nil {
		return true
	}
	return *c.RenderHTML
}

// GetStorePath returns the SQLite result store path; empty disables the store.
func (c *AnalyticsConfig) GetStorePath() string {
	if c.StorePath == nil {
		return ""
	}
	return *c.StorePath
}

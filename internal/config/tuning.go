package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for hazard engine tuning. Every
// field is optional; the Get* accessors fall back to built-in defaults so an
// empty or partial file is valid.
type TuningConfig struct {
	// Track store
	MaxTrackSamples     *int     `json:"max_track_samples,omitempty"`
	MaxTrackAge         *string  `json:"max_track_age,omitempty"` // duration string like "1.8s"
	MaxMatchDistance    *float64 `json:"max_match_distance,omitempty"`
	MinimumTrackingArea *float64 `json:"minimum_tracking_area,omitempty"`

	// Scoring
	LargeAreaThreshold      *float64 `json:"large_area_threshold,omitempty"`
	CriticalGrowthThreshold *float64 `json:"critical_growth_threshold,omitempty"`
	LatencyCompensation     *string  `json:"latency_compensation,omitempty"`

	// Vehicle rule
	CloseAreaThreshold         *float64 `json:"close_area_threshold,omitempty"`
	VehicleAheadMinArea        *float64 `json:"vehicle_ahead_min_area,omitempty"`
	RapidGrowthThreshold       *float64 `json:"rapid_growth_threshold,omitempty"`
	SustainedGrowthThreshold   *float64 `json:"sustained_growth_threshold,omitempty"`
	ApproachGrowthThreshold    *float64 `json:"approach_growth_threshold,omitempty"`
	RecedingGrowthThreshold    *float64 `json:"receding_growth_threshold,omitempty"`
	RecedingVelocityYThreshold *float64 `json:"receding_velocity_y_threshold,omitempty"`
	RequiredCenterLaneFrames   *int     `json:"required_center_lane_frames,omitempty"`

	// Cooldown
	AlertCooldown *string `json:"alert_cooldown,omitempty"`

	// Predictive path rule
	MinPredictionSpeed *float64 `json:"min_prediction_speed,omitempty"`
	PredictionHorizon  *string  `json:"prediction_horizon,omitempty"`
	NearPathMargin     *float64 `json:"near_path_margin,omitempty"`

	// Overlay and pipeline
	MotionVectorMinArea *float64 `json:"motion_vector_min_area,omitempty"`
	MaxFrameLatency     *string  `json:"max_frame_latency,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every Get* accessor on it returns the built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/x
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxTrackSamples != nil && *c.MaxTrackSamples < 2 {
		return fmt.Errorf("max_track_samples must be at least 2, got %d", *c.MaxTrackSamples)
	}
	if c.MaxMatchDistance != nil {
		if *c.MaxMatchDistance <= 0 || *c.MaxMatchDistance > 1.5 {
			return fmt.Errorf("max_match_distance must be in (0, 1.5], got %f", *c.MaxMatchDistance)
		}
	}
	if c.RequiredCenterLaneFrames != nil && *c.RequiredCenterLaneFrames < 1 {
		return fmt.Errorf("required_center_lane_frames must be at least 1, got %d", *c.RequiredCenterLaneFrames)
	}
	if c.RecedingGrowthThreshold != nil && *c.RecedingGrowthThreshold >= 0 {
		return fmt.Errorf("receding_growth_threshold must be negative, got %f", *c.RecedingGrowthThreshold)
	}
	if c.RecedingVelocityYThreshold != nil && *c.RecedingVelocityYThreshold >= 0 {
		return fmt.Errorf("receding_velocity_y_threshold must be negative, got %f", *c.RecedingVelocityYThreshold)
	}
	if c.NearPathMargin != nil && *c.NearPathMargin < 0 {
		return fmt.Errorf("near_path_margin must be non-negative, got %f", *c.NearPathMargin)
	}

	positives := []struct {
		name string
		v    *float64
	}{
		{"minimum_tracking_area", c.MinimumTrackingArea},
		{"large_area_threshold", c.LargeAreaThreshold},
		{"critical_growth_threshold", c.CriticalGrowthThreshold},
		{"close_area_threshold", c.CloseAreaThreshold},
		{"vehicle_ahead_min_area", c.VehicleAheadMinArea},
		{"rapid_growth_threshold", c.RapidGrowthThreshold},
		{"sustained_growth_threshold", c.SustainedGrowthThreshold},
		{"approach_growth_threshold", c.ApproachGrowthThreshold},
		{"min_prediction_speed", c.MinPredictionSpeed},
		{"motion_vector_min_area", c.MotionVectorMinArea},
	}
	for _, p := range positives {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", p.name, *p.v)
		}
	}

	durations := []struct {
		name string
		v    *string
	}{
		{"max_track_age", c.MaxTrackAge},
		{"latency_compensation", c.LatencyCompensation},
		{"alert_cooldown", c.AlertCooldown},
		{"prediction_horizon", c.PredictionHorizon},
		{"max_frame_latency", c.MaxFrameLatency},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.v)
		}
	}

	return nil
}

// parseDurationOr returns the parsed duration, or def when unset or invalid.
func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

func float64Or(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// GetMaxTrackSamples returns the max_track_samples value or the default.
func (c *TuningConfig) GetMaxTrackSamples() int { return intOr(c.MaxTrackSamples, 5) }

// GetMaxTrackAge returns the max_track_age value or the default.
func (c *TuningConfig) GetMaxTrackAge() time.Duration {
	return parseDurationOr(c.MaxTrackAge, 1800*time.Millisecond)
}

// GetMaxMatchDistance returns the max_match_distance value or the default.
func (c *TuningConfig) GetMaxMatchDistance() float64 { return float64Or(c.MaxMatchDistance, 0.3) }

// GetMinimumTrackingArea returns the minimum_tracking_area value or the default.
func (c *TuningConfig) GetMinimumTrackingArea() float64 {
	return float64Or(c.MinimumTrackingArea, 0.003)
}

// GetLargeAreaThreshold returns the large_area_threshold value or the default.
func (c *TuningConfig) GetLargeAreaThreshold() float64 {
	return float64Or(c.LargeAreaThreshold, 0.10)
}

// GetCriticalGrowthThreshold returns the critical_growth_threshold value or the default.
func (c *TuningConfig) GetCriticalGrowthThreshold() float64 {
	return float64Or(c.CriticalGrowthThreshold, 0.04)
}

// GetLatencyCompensation returns the latency_compensation value or the default.
func (c *TuningConfig) GetLatencyCompensation() time.Duration {
	return parseDurationOr(c.LatencyCompensation, 700*time.Millisecond)
}

// GetCloseAreaThreshold returns the close_area_threshold value or the default.
func (c *TuningConfig) GetCloseAreaThreshold() float64 {
	return float64Or(c.CloseAreaThreshold, 0.08)
}

// GetVehicleAheadMinArea returns the vehicle_ahead_min_area value or the default.
func (c *TuningConfig) GetVehicleAheadMinArea() float64 {
	return float64Or(c.VehicleAheadMinArea, 0.06)
}

// GetRapidGrowthThreshold returns the rapid_growth_threshold value or the default.
func (c *TuningConfig) GetRapidGrowthThreshold() float64 {
	return float64Or(c.RapidGrowthThreshold, 0.02)
}

// GetSustainedGrowthThreshold returns the sustained_growth_threshold value or the default.
func (c *TuningConfig) GetSustainedGrowthThreshold() float64 {
	return float64Or(c.SustainedGrowthThreshold, 0.005)
}

// GetApproachGrowthThreshold returns the approach_growth_threshold value or the default.
func (c *TuningConfig) GetApproachGrowthThreshold() float64 {
	return float64Or(c.ApproachGrowthThreshold, 0.005)
}

// GetRecedingGrowthThreshold returns the receding_growth_threshold value or the default.
func (c *TuningConfig) GetRecedingGrowthThreshold() float64 {
	return float64Or(c.RecedingGrowthThreshold, -0.005)
}

// GetRecedingVelocityYThreshold returns the receding_velocity_y_threshold value or the default.
func (c *TuningConfig) GetRecedingVelocityYThreshold() float64 {
	return float64Or(c.RecedingVelocityYThreshold, -0.02)
}

// GetRequiredCenterLaneFrames returns the required_center_lane_frames value or the default.
func (c *TuningConfig) GetRequiredCenterLaneFrames() int {
	return intOr(c.RequiredCenterLaneFrames, 2)
}

// GetAlertCooldown returns the alert_cooldown value or the default.
func (c *TuningConfig) GetAlertCooldown() time.Duration {
	return parseDurationOr(c.AlertCooldown, 4*time.Second)
}

// GetMinPredictionSpeed returns the min_prediction_speed value or the default.
func (c *TuningConfig) GetMinPredictionSpeed() float64 {
	return float64Or(c.MinPredictionSpeed, 0.04)
}

// GetPredictionHorizon returns the prediction_horizon value or the default.
func (c *TuningConfig) GetPredictionHorizon() time.Duration {
	return parseDurationOr(c.PredictionHorizon, 1200*time.Millisecond)
}

// GetNearPathMargin returns the near_path_margin value or the default.
func (c *TuningConfig) GetNearPathMargin() float64 { return float64Or(c.NearPathMargin, 0.12) }

// GetMotionVectorMinArea returns the motion_vector_min_area value or the default.
func (c *TuningConfig) GetMotionVectorMinArea() float64 {
	return float64Or(c.MotionVectorMinArea, 0.01)
}

// GetMaxFrameLatency returns the max_frame_latency value or the default.
func (c *TuningConfig) GetMaxFrameLatency() time.Duration {
	return parseDurationOr(c.MaxFrameLatency, 250*time.Millisecond)
}

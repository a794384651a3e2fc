package hazard

import (
	"time"

	"github.com/banshee-data/hazard.report/internal/config"
)

// Config holds the engine thresholds. Areas are fractions of the frame,
// growth rates are area fraction per second, velocities are normalised
// units per second.
type Config struct {
	// Track store
	MaxTrackSamples     int
	MaxTrackAge         time.Duration
	MaxMatchDistance    float64
	MinimumTrackingArea float64 // noise floor; smaller detections are ignored

	// Scorer
	LargeAreaThreshold      float64
	CriticalGrowthThreshold float64
	LatencyCompensation     time.Duration

	// Vehicle rule
	CloseAreaThreshold         float64
	VehicleAheadMinArea        float64
	RapidGrowthThreshold       float64
	SustainedGrowthThreshold   float64
	ApproachGrowthThreshold    float64
	RecedingGrowthThreshold    float64
	RecedingVelocityYThreshold float64
	RequiredCenterLaneFrames   int

	AlertCooldown time.Duration

	// Predictive path rule
	MinPredictionSpeed float64
	PredictionHorizon  time.Duration
	NearPathMargin     float64

	// MotionVectorMinArea is the smallest area reported in Result.MotionVectors.
	MotionVectorMinArea float64
}

// DefaultConfig returns the built-in engine thresholds.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MaxTrackSamples:            cfg.GetMaxTrackSamples(),
		MaxTrackAge:                cfg.GetMaxTrackAge(),
		MaxMatchDistance:           cfg.GetMaxMatchDistance(),
		MinimumTrackingArea:        cfg.GetMinimumTrackingArea(),
		LargeAreaThreshold:         cfg.GetLargeAreaThreshold(),
		CriticalGrowthThreshold:    cfg.GetCriticalGrowthThreshold(),
		LatencyCompensation:        cfg.GetLatencyCompensation(),
		CloseAreaThreshold:         cfg.GetCloseAreaThreshold(),
		VehicleAheadMinArea:        cfg.GetVehicleAheadMinArea(),
		RapidGrowthThreshold:       cfg.GetRapidGrowthThreshold(),
		SustainedGrowthThreshold:   cfg.GetSustainedGrowthThreshold(),
		ApproachGrowthThreshold:    cfg.GetApproachGrowthThreshold(),
		RecedingGrowthThreshold:    cfg.GetRecedingGrowthThreshold(),
		RecedingVelocityYThreshold: cfg.GetRecedingVelocityYThreshold(),
		RequiredCenterLaneFrames:   cfg.GetRequiredCenterLaneFrames(),
		AlertCooldown:              cfg.GetAlertCooldown(),
		MinPredictionSpeed:         cfg.GetMinPredictionSpeed(),
		PredictionHorizon:          cfg.GetPredictionHorizon(),
		NearPathMargin:             cfg.GetNearPathMargin(),
		MotionVectorMinArea:        cfg.GetMotionVectorMinArea(),
	}
}

// sane reports whether c can drive an engine without degenerate behaviour.
func (c Config) sane() bool {
	return c.MaxTrackSamples >= 2 &&
		c.MaxMatchDistance > 0 &&
		c.LargeAreaThreshold > 0 &&
		c.CriticalGrowthThreshold > 0 &&
		c.RequiredCenterLaneFrames >= 1
}

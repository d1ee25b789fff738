package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for pipeline and
// session tuning parameters. All fields are optional pointers so a
// partial JSON file only overrides what it names; the Get* methods
// supply fallback defaults for everything else.
type TuningConfig struct {
	// Sampling params
	SamplingRateHz *float64 `json:"sampling_rate_hz,omitempty"`
	Sensitivity    *string  `json:"sensitivity,omitempty"` // low | medium | high

	// Conditioner params
	MinConditioningSamples *int `json:"min_conditioning_samples,omitempty"`
	ConditioningMaxWindow  *int `json:"conditioning_max_window,omitempty"`
	BaselineWindow         *int `json:"baseline_window,omitempty"`

	// Rate estimation params
	ProcessNoise      *float64 `json:"process_noise,omitempty"`
	FinalAverageCount *int     `json:"final_average_count,omitempty"`

	// Session params (duration strings like "15s")
	CalibrationDuration *string `json:"calibration_duration,omitempty"`
	MeasurementDuration *string `json:"measurement_duration,omitempty"`
	NoFingerGrace       *string `json:"no_finger_grace,omitempty"`
	SyntheticFallback   *bool   `json:"synthetic_fallback,omitempty"`

	// Zone params
	MaxHeartRateBaseline *int `json:"max_heartrate_baseline,omitempty"` // 0 = derive from age
	Age                  *int `json:"age,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath. It searches for the file in the current directory
// and common parent directories. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
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
	if c.SamplingRateHz != nil && *c.SamplingRateHz <= 0 {
		return fmt.Errorf("sampling_rate_hz must be positive, got %f", *c.SamplingRateHz)
	}

	if c.Sensitivity != nil {
		switch *c.Sensitivity {
		case "low", "medium", "high":
		default:
			return fmt.Errorf("sensitivity must be low, medium or high, got %q", *c.Sensitivity)
		}
	}

	if c.MinConditioningSamples != nil && *c.MinConditioningSamples < 0 {
		return fmt.Errorf("min_conditioning_samples must be non-negative, got %d", *c.MinConditioningSamples)
	}

	if c.ProcessNoise != nil && *c.ProcessNoise < 0 {
		return fmt.Errorf("process_noise must be non-negative, got %f", *c.ProcessNoise)
	}

	if c.FinalAverageCount != nil && *c.FinalAverageCount < 1 {
		return fmt.Errorf("final_average_count must be at least 1, got %d", *c.FinalAverageCount)
	}

	for name, field := range map[string]*string{
		"calibration_duration": c.CalibrationDuration,
		"measurement_duration": c.MeasurementDuration,
		"no_finger_grace":      c.NoFingerGrace,
	} {
		if field != nil && *field != "" {
			if _, err := time.ParseDuration(*field); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *field, err)
			}
		}
	}

	// The calibration phase must fit inside the measurement window.
	if c.GetCalibrationDuration() >= c.GetMeasurementDuration() {
		return fmt.Errorf("calibration_duration %s must be shorter than measurement_duration %s",
			c.GetCalibrationDuration(), c.GetMeasurementDuration())
	}

	if c.Age != nil && (*c.Age < 0 || *c.Age > 120) {
		return fmt.Errorf("age must be between 0 and 120, got %d", *c.Age)
	}

	if c.MaxHeartRateBaseline != nil && *c.MaxHeartRateBaseline < 0 {
		return fmt.Errorf("max_heartrate_baseline must be non-negative, got %d", *c.MaxHeartRateBaseline)
	}

	return nil
}

// GetSamplingRateHz returns the sampling_rate_hz value or the default.
func (c *TuningConfig) GetSamplingRateHz() float64 {
	if c.SamplingRateHz == nil {
		return 30.0 // nominal camera frame rate
	}
	return *c.SamplingRateHz
}

// GetSensitivity returns the sensitivity value or the default.
func (c *TuningConfig) GetSensitivity() string {
	if c.Sensitivity == nil {
		return "medium"
	}
	return *c.Sensitivity
}

// GetMinConditioningSamples returns the min_conditioning_samples value or the default.
func (c *TuningConfig) GetMinConditioningSamples() int {
	if c.MinConditioningSamples == nil {
		return 20
	}
	return *c.MinConditioningSamples
}

// GetConditioningMaxWindow returns the conditioning_max_window value or the default.
func (c *TuningConfig) GetConditioningMaxWindow() int {
	if c.ConditioningMaxWindow == nil {
		return 512
	}
	return *c.ConditioningMaxWindow
}

// GetBaselineWindow returns the baseline_window value or the default.
func (c *TuningConfig) GetBaselineWindow() int {
	if c.BaselineWindow == nil {
		return 50
	}
	return *c.BaselineWindow
}

// GetProcessNoise returns the process_noise value or the default.
func (c *TuningConfig) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return 1.0
	}
	return *c.ProcessNoise
}

// GetFinalAverageCount returns the final_average_count value or the default.
func (c *TuningConfig) GetFinalAverageCount() int {
	if c.FinalAverageCount == nil {
		return 5
	}
	return *c.FinalAverageCount
}

// GetCalibrationDuration parses and returns the calibration phase duration.
func (c *TuningConfig) GetCalibrationDuration() time.Duration {
	return c.durationOr(c.CalibrationDuration, 5*time.Second)
}

// GetMeasurementDuration parses and returns the total measurement window.
func (c *TuningConfig) GetMeasurementDuration() time.Duration {
	return c.durationOr(c.MeasurementDuration, 15*time.Second)
}

// GetNoFingerGrace parses and returns the no-finger guidance grace period.
func (c *TuningConfig) GetNoFingerGrace() time.Duration {
	return c.durationOr(c.NoFingerGrace, 3*time.Second)
}

// GetSyntheticFallback returns the synthetic_fallback value or the default.
func (c *TuningConfig) GetSyntheticFallback() bool {
	if c.SyntheticFallback == nil {
		return true // parity with the shipped product behaviour
	}
	return *c.SyntheticFallback
}

// GetMaxHeartRateBaseline returns the max_heartrate_baseline value or the default.
// Zero means "derive from age".
func (c *TuningConfig) GetMaxHeartRateBaseline() int {
	if c.MaxHeartRateBaseline == nil {
		return 0
	}
	return *c.MaxHeartRateBaseline
}

// GetAge returns the age value or the default.
func (c *TuningConfig) GetAge() int {
	if c.Age == nil {
		return 30
	}
	return *c.Age
}

func (c *TuningConfig) durationOr(field *string, def time.Duration) time.Duration {
	if field == nil || *field == "" {
		return def
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return def
	}
	return d
}

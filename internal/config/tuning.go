package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/plated-ai/nutrition.report/internal/foodvision"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the file-level override set for the pipeline's tuning
// parameters. All fields are pointers so a partial JSON file only
// overrides what it names; everything else keeps the built-in default.
type TuningConfig struct {
	// Detection params
	DetectionInterval   *int     `json:"detection_interval,omitempty"`
	MinBoxArea          *float64 `json:"min_box_area,omitempty"`
	HallucinationScreen *bool    `json:"hallucination_screen,omitempty"`

	// Duplicate suppression params
	DuplicateIoU        *float64 `json:"duplicate_iou,omitempty"`
	CenterDistanceRatio *float64 `json:"center_distance_ratio,omitempty"`
	SizeRatioThreshold  *float64 `json:"size_ratio_threshold,omitempty"`
	ContainmentRatio    *float64 `json:"containment_ratio,omitempty"`
	OversizeAreaFactor  *float64 `json:"oversize_area_factor,omitempty"`

	// Tracker params
	MatchIoU            *float64 `json:"match_iou,omitempty"`
	MaxMissedDetections *int     `json:"max_missed_detections,omitempty"`

	// Calibration params
	DefaultPixelsPerCM    *float64 `json:"default_pixels_per_cm,omitempty"`
	DefaultRefPlaneDepthM *float64 `json:"default_ref_plane_depth_m,omitempty"`
	PlateDiameterCM       *float64 `json:"plate_diameter_cm,omitempty"`
	BowlDiameterCM        *float64 `json:"bowl_diameter_cm,omitempty"`

	// Fallback volume params
	FallbackHeightCM *float64 `json:"fallback_height_cm,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the JSON retain their default values, so partial configs are safe.
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

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that any set values are usable.
func (c *TuningConfig) Validate() error {
	if c.DetectionInterval != nil && *c.DetectionInterval < 1 {
		return fmt.Errorf("detection_interval must be >= 1, got %d", *c.DetectionInterval)
	}
	if c.MinBoxArea != nil && *c.MinBoxArea < 0 {
		return fmt.Errorf("min_box_area must be non-negative, got %f", *c.MinBoxArea)
	}
	for name, v := range map[string]*float64{
		"duplicate_iou": c.DuplicateIoU,
		"match_iou":     c.MatchIoU,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}
	if c.MaxMissedDetections != nil && *c.MaxMissedDetections < 0 {
		return fmt.Errorf("max_missed_detections must be non-negative, got %d", *c.MaxMissedDetections)
	}
	for name, v := range map[string]*float64{
		"default_pixels_per_cm":     c.DefaultPixelsPerCM,
		"default_ref_plane_depth_m": c.DefaultRefPlaneDepthM,
		"plate_diameter_cm":         c.PlateDiameterCM,
		"bowl_diameter_cm":          c.BowlDiameterCM,
		"fallback_height_cm":        c.FallbackHeightCM,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	return nil
}

// Apply overlays the set fields onto a pipeline config.
func (c *TuningConfig) Apply(dst *foodvision.Config) {
	if c.DetectionInterval != nil {
		dst.DetectionInterval = *c.DetectionInterval
	}
	if c.MinBoxArea != nil {
		dst.MinBoxArea = *c.MinBoxArea
	}
	if c.HallucinationScreen != nil {
		dst.HallucinationScreen = *c.HallucinationScreen
	}
	if c.DuplicateIoU != nil {
		dst.DuplicateIoU = *c.DuplicateIoU
	}
	if c.CenterDistanceRatio != nil {
		dst.CenterDistanceRatio = *c.CenterDistanceRatio
	}
	if c.SizeRatioThreshold != nil {
		dst.SizeRatioThreshold = *c.SizeRatioThreshold
	}
	if c.ContainmentRatio != nil {
		dst.ContainmentRatio = *c.ContainmentRatio
	}
	if c.OversizeAreaFactor != nil {
		dst.OversizeAreaFactor = *c.OversizeAreaFactor
	}
	if c.MatchIoU != nil {
		dst.MatchIoU = *c.MatchIoU
	}
	if c.MaxMissedDetections != nil {
		dst.MaxMissedDetections = *c.MaxMissedDetections
	}
	if c.DefaultPixelsPerCM != nil {
		dst.DefaultPixelsPerCM = *c.DefaultPixelsPerCM
	}
	if c.DefaultRefPlaneDepthM != nil {
		dst.DefaultRefPlaneDepthM = *c.DefaultRefPlaneDepthM
	}
	if c.PlateDiameterCM != nil {
		dst.PlateDiameterCM = *c.PlateDiameterCM
	}
	if c.BowlDiameterCM != nil {
		dst.BowlDiameterCM = *c.BowlDiameterCM
	}
	if c.FallbackHeightCM != nil {
		dst.FallbackHeightCM = *c.FallbackHeightCM
	}
}

// GetDetectionInterval returns the detection_interval value or the default.
func (c *TuningConfig) GetDetectionInterval() int {
	if c.DetectionInterval == nil {
		return foodvision.DefaultConfig().DetectionInterval
	}
	return *c.DetectionInterval
}

// GetMatchIoU returns the match_iou value or the default.
func (c *TuningConfig) GetMatchIoU() float64 {
	if c.MatchIoU == nil {
		return foodvision.IoUMatchThreshold
	}
	return *c.MatchIoU
}

// GetMaxMissedDetections returns the max_missed_detections value or the default.
func (c *TuningConfig) GetMaxMissedDetections() int {
	if c.MaxMissedDetections == nil {
		return foodvision.DefaultConfig().MaxMissedDetections
	}
	return *c.MaxMissedDetections
}

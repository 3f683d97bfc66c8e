package foodvision

import (
	"github.com/plated-ai/nutrition.report/internal/geometry"
)

// Frame identifies one input image within a job. The pipeline never touches
// pixel data directly; collaborators resolve a Frame to whatever backing
// store they use (decoded video frames, image files, a replay session).
type Frame struct {
	Index  int
	Width  int
	Height int
}

// RawDetection is one entry of unnormalized detector output. The shape is
// the lowest common denominator across detector variants; the Detection
// Normalizer converts batches of these into canonical DetectedItems.
type RawDetection struct {
	Label string `json:"label"`
	// Box coordinates as [x1, y1, x2, y2] in pixels of the detector's
	// reference frame. May exceed frame bounds; the normalizer clamps.
	Box [4]float64 `json:"box"`
	// MassG is an optional per-item mass hint in grams.
	MassG *float64 `json:"mass_g,omitempty"`
	// Quantity is the detector's count hint; values < 1 normalize to 1.
	Quantity int `json:"quantity,omitempty"`
	// Confidence is the detector's score in [0, 1], 0 when not reported.
	Confidence float64 `json:"confidence,omitempty"`
}

// DetectedItem is one canonical detection produced by the normalizer.
// Items are immutable once produced.
type DetectedItem struct {
	Label      string
	Box        geometry.Box
	MassG      *float64
	Quantity   int
	Confidence float64
}

// TrackedObject is a persistent food-item identity maintained across
// detection events. The Identity Tracker owns all writes; other components
// only read. Objects are never destroyed mid-run, only merged or excluded
// at finalization.
type TrackedObject struct {
	ID    int64
	Label string
	Box   geometry.Box

	FirstSeenFrame int
	LastSeenFrame  int

	// ExternalMassG and ExternalQuantity carry detector-supplied overrides
	// that bypass the knowledge-base mass derivation at aggregation time.
	ExternalMassG    *float64
	ExternalQuantity int

	// MissedEvents counts consecutive detection events without a match.
	// Reset to zero on every match.
	MissedEvents int

	// Retired is set when MissedEvents exceeds the configured retirement
	// threshold. Retired objects accrue no further volume samples but still
	// appear at finalization.
	Retired bool
}

// VolumeSample is one volume measurement for one object at one detection
// event. Samples are append-only; the pre-cap volume is retained so caps
// can be audited after the fact.
type VolumeSample struct {
	FrameIndex int     `json:"frame_index"`
	VolumeML   float64 `json:"volume_ml"`
	HeightCM   float64 `json:"height_cm"`
	AreaCM2    float64 `json:"area_cm2"`
	DiameterCM float64 `json:"diameter_cm"`

	// PreCapVolumeML is the geometric volume before the safety cap.
	// Equal to VolumeML when no cap applied.
	PreCapVolumeML float64 `json:"pre_cap_volume_ml"`
	Capped         bool    `json:"capped,omitempty"`
	CapReason      string  `json:"cap_reason,omitempty"`
}

// VolumeHistory is the ordered per-object sequence of volume samples.
// Entries are monotonically increasing in FrameIndex.
type VolumeHistory []VolumeSample

// CalibrationSource records which branch of the calibration fallback chain
// produced the accepted scale.
type CalibrationSource string

const (
	// CalibrationReference means a validated reference object set the scale.
	CalibrationReference CalibrationSource = "reference_object"
	// CalibrationSceneMedian means the scale fell back to the configured
	// default with the reference plane taken from the scene depth median.
	CalibrationSceneMedian CalibrationSource = "scene_median"
	// CalibrationDefault means both scale and plane came from config defaults.
	CalibrationDefault CalibrationSource = "default"
)

// CalibrationState holds the one-time pixel scale and reference depth plane
// for a job. Set once; all later calibration attempts are no-ops.
type CalibrationState struct {
	PixelsPerCM          float64
	ReferencePlaneDepthM float64
	Calibrated           bool
	Source               CalibrationSource
}

// Mask is a dense boolean grid marking one object's pixels in one frame.
// Supplied by the segmentation collaborator and consumed transiently.
type Mask struct {
	Width  int
	Height int
	Bits   []bool // row-major, len = Width*Height
}

// NewMask returns an all-false mask of the given dimensions.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Bits: make([]bool, width*height)}
}

// At reports whether the pixel at (x, y) is inside the mask. Out-of-range
// coordinates are outside.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// Set marks the pixel at (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Bits[y*m.Width+x] = true
}

// PixelCount returns the number of set pixels.
func (m *Mask) PixelCount() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// DepthMap is a dense per-pixel depth grid in meters, supplied by the depth
// collaborator and consumed transiently. Non-positive values mean "no
// estimate" and are excluded from statistics.
type DepthMap struct {
	Width  int
	Height int
	Meters []float64 // row-major, len = Width*Height
}

// NewDepthMap returns a zero-filled depth map of the given dimensions.
func NewDepthMap(width, height int) *DepthMap {
	return &DepthMap{Width: width, Height: height, Meters: make([]float64, width*height)}
}

// At returns the depth in meters at (x, y), or 0 for out-of-range
// coordinates.
func (d *DepthMap) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return 0
	}
	return d.Meters[y*d.Width+x]
}

// Set writes the depth at (x, y). Out-of-range coordinates are ignored.
func (d *DepthMap) Set(x, y int, meters float64) {
	if x < 0 || y < 0 || x >= d.Width || y >= d.Height {
		return
	}
	d.Meters[y*d.Width+x] = meters
}

// NutritionSource identifies where a record's mass and calorie figures came
// from.
type NutritionSource string

const (
	// SourceKnowledgeBase means the nutrition knowledge base resolved the item.
	SourceKnowledgeBase NutritionSource = "knowledge_base"
	// SourceExternalOverride means a detector-supplied mass bypassed the
	// density derivation.
	SourceExternalOverride NutritionSource = "external_override"
	// SourceDefault means no knowledge-base match existed and defaults applied.
	SourceDefault NutritionSource = "default"
)

// NutritionRecord is the per-item nutrition result produced at aggregation.
type NutritionRecord struct {
	FoodName        string          `json:"food_name"`
	MatchedFood     string          `json:"matched_food,omitempty"`
	VolumeML        float64         `json:"volume_ml"`
	DensityGPerML   float64         `json:"density_g_per_ml"`
	MassG           float64         `json:"mass_g"`
	CaloriesPer100G float64         `json:"calories_per_100g"`
	TotalCalories   float64         `json:"total_calories"`
	Quantity        int             `json:"quantity"`
	Source          NutritionSource `json:"source"`
	// Estimated marks items whose volume came from the fallback estimation
	// path rather than geometric measurement.
	Estimated bool `json:"estimated,omitempty"`
}

// ObjectStatistics summarizes one object's volume history for reporting.
type ObjectStatistics struct {
	MaxVolumeML    float64 `json:"max_volume_ml"`
	MedianVolumeML float64 `json:"median_volume_ml"`
	MeanVolumeML   float64 `json:"mean_volume_ml"`
	MaxHeightCM    float64 `json:"max_height_cm"`
	MaxAreaCM2     float64 `json:"max_area_cm2"`
	NumSamples     int     `json:"num_samples"`
	Estimated      bool    `json:"estimated,omitempty"`
}

// ObjectResult pairs a surviving tracked object with its history, summary
// statistics and nutrition record.
type ObjectResult struct {
	Object     *TrackedObject   `json:"object"`
	History    VolumeHistory    `json:"history"`
	Statistics ObjectStatistics `json:"statistics"`
	// Nutrition is nil for objects excluded as non-food.
	Nutrition *NutritionRecord `json:"nutrition,omitempty"`
}

// MealSummary is the meal-level aggregate over all food items.
type MealSummary struct {
	TotalVolumeML   float64 `json:"total_food_volume_ml"`
	TotalMassG      float64 `json:"total_mass_g"`
	TotalCaloriesKC float64 `json:"total_calories_kcal"`
	NumFoodItems    int     `json:"num_food_items"`
}

// DetectionLogEntry records one detection at one event for diagnostics.
type DetectionLogEntry struct {
	Label string       `json:"label"`
	Box   geometry.Box `json:"box"`
	Area  float64      `json:"box_area"`
}

// DetectionEvent is the per-event diagnostic detection log exposed to the
// orchestration layer for debugging.
type DetectionEvent struct {
	FrameIndex int                 `json:"frame_index"`
	Detections []DetectionLogEntry `json:"detections"`
	Total      int                 `json:"total_detected"`
}

// MergeEvent records one dedup merge for post-hoc auditing.
type MergeEvent struct {
	KeptID          int64   `json:"kept_id"`
	DroppedID       int64   `json:"dropped_id"`
	Label           string  `json:"label"`
	IoU             float64 `json:"iou"`
	CenterDistance  float64 `json:"center_distance"`
	SamplesAbsorbed int     `json:"samples_absorbed"`
}

// Result is the full output of one Analyze run.
type Result struct {
	JobID       string           `json:"job_id"`
	Objects     []*ObjectResult  `json:"objects"`
	Summary     MealSummary      `json:"summary"`
	Calibration CalibrationState `json:"calibration"`
	Detections  []DetectionEvent `json:"detection_log"`
	Merges      []MergeEvent     `json:"merges,omitempty"`
	FrameCount  int              `json:"frame_count"`
}

package foodvision

// Constants for pipeline configuration. The thresholds were tuned
// empirically against real meal footage; treat them as calibrated values,
// not derivable ones.
const (
	// IoUMatchThreshold is the minimum IoU for the tracker to commit a
	// greedy match between an existing object and a new detection.
	IoUMatchThreshold = 0.5
	// DuplicateIoUThreshold is the overlap above which two same-label
	// detections are considered duplicates.
	DuplicateIoUThreshold = 0.2
	// AbsoluteMaxVolumeML bounds any single item volume.
	AbsoluteMaxVolumeML = 1000.0
)

// Config holds all tuning parameters for one analysis job.
type Config struct {
	// DetectionInterval is the frame stride between detection events.
	DetectionInterval int

	// MinBoxArea drops detections smaller than this many square pixels.
	MinBoxArea float64

	// GenericLabels are dropped outright during normalization
	// (case-insensitive match on the full label).
	GenericLabels []string

	// NonFoodKeywords exclude objects from nutrition totals (substring
	// match on the lowercased label).
	NonFoodKeywords []string

	// ReferenceLabels mark objects usable as calibration references.
	ReferenceLabels []string

	// HallucinationScreen enables rejection of implausible compound labels.
	HallucinationScreen bool

	// Duplicate suppression thresholds (normalizer and merge engine).
	DuplicateIoU        float64 // overlap duplicate test
	CenterDistanceRatio float64 // centers closer than ratio x avg extent
	SizeRatioThreshold  float64 // min small/large area ratio for the center test
	ContainmentRatio    float64 // containment area ratio (larger/smaller)
	OversizeAreaFactor  float64 // multiple of mean same-label area

	// MatchIoU is the tracker's greedy matching threshold.
	MatchIoU float64

	// MaxMissedDetections retires an object after this many consecutive
	// unmatched detection events. Zero means never retire (the object
	// persists with its last known box for the whole run).
	MaxMissedDetections int

	// Calibration parameters.
	DefaultPixelsPerCM       float64
	DefaultRefPlaneDepthM    float64
	PlateDiameterCM          float64
	BowlDiameterCM           float64
	MinReferenceWidthPX      float64
	ReferenceAspectRatioMin  float64
	ReferenceAspectRatioMax  float64
	MinPlausiblePixelsPerCM  float64
	MaxPlausiblePixelsPerCM  float64

	// FallbackHeightCM is the assumed height when estimating volume for
	// objects that never produced a mask (volume = area x height).
	FallbackHeightCM float64
}

// DefaultConfig returns the tuning values carried over from the calibrated
// production pipeline.
func DefaultConfig() Config {
	return Config{
		DetectionInterval: 5,
		MinBoxArea:        500,
		GenericLabels: []string{
			"table", "tablecloth", "menu card", "background", "setting", "surface",
		},
		NonFoodKeywords: []string{
			"plate", "platter", "fork", "knife", "spoon", "glass", "cup", "mug",
			"bottle", "table", "bowl", "water", "sprinkle", "surface", "wooden",
			"board", "cutting board", "background", "setting", "scene",
			"some other", "other objects", "object", "container", "napkin",
			"tissue", "placemat", "mat",
		},
		ReferenceLabels:     []string{"plate", "bowl", "platter", "dish"},
		HallucinationScreen: true,

		DuplicateIoU:        DuplicateIoUThreshold,
		CenterDistanceRatio: 0.5,
		SizeRatioThreshold:  0.6,
		ContainmentRatio:    1.5,
		OversizeAreaFactor:  3.0,

		MatchIoU:            IoUMatchThreshold,
		MaxMissedDetections: 0,

		DefaultPixelsPerCM:      16.0, // 800px frame over a ~50cm scene
		DefaultRefPlaneDepthM:   0.5,
		PlateDiameterCM:         25.0,
		BowlDiameterCM:          20.0,
		MinReferenceWidthPX:     50,
		ReferenceAspectRatioMin: 0.6,
		ReferenceAspectRatioMax: 1.5,
		MinPlausiblePixelsPerCM: 3.0,
		MaxPlausiblePixelsPerCM: 30.0,

		FallbackHeightCM: 2.0,
	}
}

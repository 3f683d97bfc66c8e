package foodvision

import "context"

// Detector produces raw detections for a frame. Implementations wrap a
// vision model service or a recorded replay session.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]RawDetection, error)
}

// Segmenter produces a per-object pixel mask for a box prompt within a
// frame. A nil mask with a nil error means the segmenter declined the
// prompt; the caller falls back to box-area estimation.
type Segmenter interface {
	Segment(ctx context.Context, frame Frame, box [4]float64) (*Mask, error)
}

// DepthEstimator produces a dense relative depth map for a frame.
type DepthEstimator interface {
	EstimateDepth(ctx context.Context, frame Frame) (*DepthMap, error)
}

// NutritionLookup resolves a food name to density and calorie figures.
// Found is false when the name matched nothing; callers then apply
// defaults.
type NutritionLookup interface {
	Lookup(ctx context.Context, foodName string) (info NutritionInfo, found bool, err error)
}

// NutritionInfo is one knowledge-base entry.
type NutritionInfo struct {
	MatchedName     string
	DensityGPerML   float64
	CaloriesPer100G float64
}

// BulkVolumeEstimator supplies fallback volume estimates for objects that
// finished the run without any measured volume samples. The pipeline makes
// at most one call per run, batching every zero-history item.
type BulkVolumeEstimator interface {
	EstimateVolumes(ctx context.Context, items []VolumeEstimateRequest) (map[int64]float64, error)
}

// VolumeEstimateRequest describes one zero-history object for bulk
// estimation.
type VolumeEstimateRequest struct {
	ObjectID int64
	Label    string
	AreaCM2  float64
}

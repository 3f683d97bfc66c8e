package foodvision

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/plated-ai/nutrition.report/internal/monitoring"
)

// VolumeEstimator converts a per-object mask, the frame depth map and the
// job calibration into one VolumeSample. All heuristics here (percentile
// choices, height caps, shape factors) were tuned against real footage;
// they correct depth-model noise, not geometry.
type VolumeEstimator struct {
	cfg *Config
}

// NewVolumeEstimator returns an estimator bound to the given config.
func NewVolumeEstimator(cfg *Config) *VolumeEstimator {
	return &VolumeEstimator{cfg: cfg}
}

// Estimate produces a volume sample for one object in one frame. It
// returns false when the mask is empty or calibration is unusable; the
// caller then skips volume accrual for this frame.
func (v *VolumeEstimator) Estimate(mask *Mask, depth *DepthMap, obj *TrackedObject,
	cal CalibrationState, frameIndex int) (VolumeSample, bool) {

	if mask == nil || !cal.Calibrated || cal.PixelsPerCM <= 0 {
		return VolumeSample{}, false
	}
	pixelCount := mask.PixelCount()
	if pixelCount == 0 {
		return VolumeSample{}, false
	}
	areaCM2 := float64(pixelCount) / (cal.PixelsPerCM * cal.PixelsPerCM)

	depths := maskedDepths(mask, depth)
	if len(depths) == 0 {
		return VolumeSample{}, false
	}

	rawHeightCM := rawHeight(depths, cal.ReferencePlaneDepthM)

	// Assume a roughly circular footprint for the size heuristics.
	diameterCM := 2 * math.Sqrt(areaCM2/math.Pi)

	heightCM := v.capHeight(obj.Label, rawHeightCM, diameterCM)
	factor := shapeFactor(obj.Label, diameterCM)
	volumeML := areaCM2 * heightCM * factor

	sample := VolumeSample{
		FrameIndex:     frameIndex,
		VolumeML:       volumeML,
		HeightCM:       heightCM,
		AreaCM2:        areaCM2,
		DiameterCM:     diameterCM,
		PreCapVolumeML: volumeML,
	}
	v.applySafetyCap(&sample, obj.Label)

	monitoring.Debugf("volume: object %d %q frame %d: area=%.1fcm2 h=%.2fcm d=%.1fcm factor=%.2f -> %.1fml",
		obj.ID, obj.Label, frameIndex, areaCM2, heightCM, diameterCM, factor, sample.VolumeML)
	return sample, true
}

// maskedDepths collects the positive depth values under the mask.
func maskedDepths(mask *Mask, depth *DepthMap) []float64 {
	if depth == nil {
		return nil
	}
	out := make([]float64, 0, 256)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if !mask.At(x, y) {
				continue
			}
			if d := depth.At(x, y); d > 0 {
				out = append(out, d)
			}
		}
	}
	return out
}

// rawHeight derives the uncapped object height in cm from in-mask depths.
// The 10th percentile is the object top (closest to camera), the 90th the
// bottom. Height above the reference plane and internal depth variation
// cover the on-plate and free-standing cases respectively; the larger
// wins.
func rawHeight(depths []float64, planeDepthM float64) float64 {
	sorted := append([]float64(nil), depths...)
	sort.Float64s(sorted)
	topM := stat.Quantile(0.10, stat.Empirical, sorted, nil)
	bottomM := stat.Quantile(0.90, stat.Empirical, sorted, nil)
	variationM := bottomM - topM

	heightM := variationM
	if planeDepthM > 0 {
		if above := planeDepthM - topM; above > heightM {
			heightM = above
		}
	}
	if heightM < 0 {
		heightM = 0
	}
	return heightM * 100
}

// capHeight applies the label-aware height corrections.
func (v *VolumeEstimator) capHeight(label string, rawCM, diameterCM float64) float64 {
	switch {
	case isPlate(label):
		// Plates read tall when their rim catches the depth model.
		if rawCM > 5 {
			return math.Min(rawCM, 2.5)
		}
		return math.Max(rawCM, 1.5)
	case isDrinkware(label):
		if rawCM < 3 {
			return math.Max(rawCM, 8)
		}
		return math.Min(rawCM, 15)
	case isFlatItem(label):
		h := math.Min(rawCM, diameterCM*0.05)
		h = math.Max(h, 0.3)
		return math.Min(h, 2.0)
	default:
		h := math.Min(rawCM, diameterCM*0.25)
		switch {
		case diameterCM < 5:
			h = math.Min(h, 3.0)
		case diameterCM < 10:
			h = math.Min(h, 6.0)
		default:
			h = math.Min(h, 10.0)
		}
		return math.Max(h, 1.0)
	}
}

// shapeFactor corrects geometric volume for irregularity and air gaps.
// Smaller items pack more air; larger items are more solid.
func shapeFactor(label string, diameterCM float64) float64 {
	switch {
	case isFlatItem(label):
		return 0.4
	case diameterCM < 5:
		return 0.5
	case diameterCM < 10:
		return 0.6
	default:
		return 0.65
	}
}

// applySafetyCap bounds the sample volume by the diameter-derived maximum,
// the per-category typical maximum when one matches, and the absolute
// ceiling. The pre-cap value is preserved for auditing.
func (v *VolumeEstimator) applySafetyCap(s *VolumeSample, label string) {
	maxML := s.DiameterCM * s.DiameterCM * s.DiameterCM * 0.5
	reason := "diameter"
	if catMax := categoryMaxVolumeML(label); catMax > 0 && catMax < maxML {
		maxML = catMax
		reason = "category"
	}
	if AbsoluteMaxVolumeML < maxML {
		maxML = AbsoluteMaxVolumeML
		reason = "absolute"
	}
	if s.VolumeML > maxML {
		monitoring.Logf("volume: capping %q from %.1fml to %.1fml (%s)",
			label, s.VolumeML, maxML, reason)
		s.VolumeML = maxML
		s.Capped = true
		s.CapReason = reason
	}
}

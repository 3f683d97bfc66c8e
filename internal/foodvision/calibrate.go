package foodvision

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/plated-ai/nutrition.report/internal/geometry"
	"github.com/plated-ai/nutrition.report/internal/monitoring"
)

// Calibrator derives the job's pixel-to-centimeter scale and reference
// depth plane. It runs at most once; every call after the first successful
// calibration is a no-op. Reference-object detection is unreliable, so a
// fallback chain guarantees volume estimation is never blocked on a
// missing or malformed calibration target.
type Calibrator struct {
	cfg   *Config
	state CalibrationState
}

// NewCalibrator returns an uncalibrated Calibrator.
func NewCalibrator(cfg *Config) *Calibrator {
	return &Calibrator{cfg: cfg}
}

// State returns the current calibration state.
func (c *Calibrator) State() CalibrationState {
	return c.state
}

// Calibrate attempts calibration from the given candidate reference object
// and frame depth map. Either argument may be nil; the fallback chain
// handles both. Once calibrated the call returns immediately.
func (c *Calibrator) Calibrate(reference *TrackedObject, depth *DepthMap) CalibrationState {
	if c.state.Calibrated {
		return c.state
	}

	if reference != nil {
		kind := c.cfg.ReferenceKind(reference.Label)
		if kind != "" {
			diameterCM := c.cfg.PlateDiameterCM
			if kind == "bowl" {
				diameterCM = c.cfg.BowlDiameterCM
			}
			if scale, ok := c.referenceScale(reference.Box, diameterCM); ok {
				c.state = CalibrationState{
					PixelsPerCM:          scale,
					ReferencePlaneDepthM: c.planeDepth(depth, &reference.Box),
					Calibrated:           true,
					Source:               CalibrationReference,
				}
				monitoring.Logf("calibration: %.2f px/cm from %s %q (plane %.3fm)",
					scale, kind, reference.Label, c.state.ReferencePlaneDepthM)
				return c.state
			}
			monitoring.Logf("calibration: rejecting implausible reference %q (w=%.0fpx ar=%.2f)",
				reference.Label, reference.Box.Width(), reference.Box.AspectRatio())
		}
	}

	source := CalibrationDefault
	planeDepth := c.cfg.DefaultRefPlaneDepthM
	if median, ok := positiveDepthMedian(depth); ok {
		planeDepth = median
		source = CalibrationSceneMedian
	}
	c.state = CalibrationState{
		PixelsPerCM:          c.cfg.DefaultPixelsPerCM,
		ReferencePlaneDepthM: planeDepth,
		Calibrated:           true,
		Source:               source,
	}
	monitoring.Logf("calibration: default %.2f px/cm, plane %.3fm (%s)",
		c.state.PixelsPerCM, planeDepth, source)
	return c.state
}

// referenceScale derives pixels-per-cm from a reference box of known
// physical diameter and validates plausibility.
func (c *Calibrator) referenceScale(box geometry.Box, diameterCM float64) (float64, bool) {
	if box.Width() <= c.cfg.MinReferenceWidthPX {
		return 0, false
	}
	ar := box.AspectRatio()
	if ar <= c.cfg.ReferenceAspectRatioMin || ar >= c.cfg.ReferenceAspectRatioMax {
		return 0, false
	}
	scale := box.Width() / diameterCM
	if scale <= c.cfg.MinPlausiblePixelsPerCM || scale >= c.cfg.MaxPlausiblePixelsPerCM {
		return 0, false
	}
	return scale, true
}

// planeDepth returns the median positive depth inside the box, the scene
// median when the box yields nothing, or the configured default.
func (c *Calibrator) planeDepth(depth *DepthMap, box *geometry.Box) float64 {
	if depth != nil && box != nil {
		if median, ok := boxDepthMedian(depth, *box); ok {
			return median
		}
	}
	if median, ok := positiveDepthMedian(depth); ok {
		return median
	}
	return c.cfg.DefaultRefPlaneDepthM
}

// boxDepthMedian computes the median of positive depths inside a pixel box.
func boxDepthMedian(depth *DepthMap, box geometry.Box) (float64, bool) {
	x1, y1 := int(box.X1), int(box.Y1)
	x2, y2 := int(box.X2), int(box.Y2)
	values := make([]float64, 0, (x2-x1)*(y2-y1))
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			if d := depth.At(x, y); d > 0 {
				values = append(values, d)
			}
		}
	}
	return medianOf(values)
}

// positiveDepthMedian computes the median over all positive depths in the map.
func positiveDepthMedian(depth *DepthMap) (float64, bool) {
	if depth == nil {
		return 0, false
	}
	values := make([]float64, 0, len(depth.Meters))
	for _, d := range depth.Meters {
		if d > 0 {
			values = append(values, d)
		}
	}
	return medianOf(values)
}

func medianOf(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sort.Float64s(values)
	return stat.Quantile(0.5, stat.Empirical, values, nil), true
}

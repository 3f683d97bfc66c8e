package foodvision

import (
	"testing"

	"github.com/plated-ai/nutrition.report/internal/geometry"
	"github.com/plated-ai/nutrition.report/internal/testutil"
)

func uniformDepth(w, h int, meters float64) *DepthMap {
	d := NewDepthMap(w, h)
	for i := range d.Meters {
		d.Meters[i] = meters
	}
	return d
}

func TestCalibrateFromReference(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibrator(&cfg)

	// 200px wide plate of 25cm diameter: 8.0 px/cm, aspect ratio ~0.95.
	ref := &TrackedObject{ID: 1, Label: "white plate",
		Box: geometry.NewBox(100, 100, 300, 310)}
	state := cal.Calibrate(ref, uniformDepth(400, 400, 0.6))

	if !state.Calibrated {
		t.Fatal("should be calibrated")
	}
	testutil.AssertInDelta(t, state.PixelsPerCM, 8.0, 1e-9)
	if state.Source != CalibrationReference {
		t.Errorf("Source = %q, want reference_object", state.Source)
	}
	testutil.AssertInDelta(t, state.ReferencePlaneDepthM, 0.6, 1e-9)
}

func TestCalibrateRejectsBadAspectRatio(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibrator(&cfg)

	// Aspect ratio 3.0: implausible plate, fall through to defaults.
	ref := &TrackedObject{ID: 1, Label: "plate",
		Box: geometry.NewBox(0, 0, 300, 100)}
	state := cal.Calibrate(ref, nil)

	if state.Source == CalibrationReference {
		t.Fatal("implausible reference should be rejected")
	}
	if state.PixelsPerCM != cfg.DefaultPixelsPerCM {
		t.Errorf("PixelsPerCM = %v, want default %v", state.PixelsPerCM, cfg.DefaultPixelsPerCM)
	}
}

func TestCalibrateRejectsNarrowReference(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibrator(&cfg)

	ref := &TrackedObject{ID: 1, Label: "plate",
		Box: geometry.NewBox(0, 0, 40, 40)} // under MinReferenceWidthPX
	state := cal.Calibrate(ref, nil)
	if state.Source == CalibrationReference {
		t.Error("narrow reference should be rejected")
	}
}

func TestCalibrateSceneMedianFallback(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibrator(&cfg)

	state := cal.Calibrate(nil, uniformDepth(100, 100, 0.72))
	if state.Source != CalibrationSceneMedian {
		t.Fatalf("Source = %q, want scene_median", state.Source)
	}
	testutil.AssertInDelta(t, state.ReferencePlaneDepthM, 0.72, 1e-9)
	if state.PixelsPerCM != cfg.DefaultPixelsPerCM {
		t.Errorf("PixelsPerCM = %v, want default", state.PixelsPerCM)
	}
}

func TestCalibrateDefaultWithNoDepth(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibrator(&cfg)

	// All-zero depth map has no positive values.
	state := cal.Calibrate(nil, NewDepthMap(50, 50))
	if state.Source != CalibrationDefault {
		t.Fatalf("Source = %q, want default", state.Source)
	}
	if state.ReferencePlaneDepthM != cfg.DefaultRefPlaneDepthM {
		t.Errorf("plane depth = %v, want default", state.ReferencePlaneDepthM)
	}
}

func TestCalibrateIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cal := NewCalibrator(&cfg)

	first := cal.Calibrate(nil, uniformDepth(100, 100, 0.5))

	// A perfectly valid reference arriving later must not re-calibrate.
	ref := &TrackedObject{ID: 1, Label: "plate",
		Box: geometry.NewBox(100, 100, 300, 310)}
	second := cal.Calibrate(ref, uniformDepth(100, 100, 0.9))

	if second != first {
		t.Errorf("second calibration changed state: %+v vs %+v", second, first)
	}
}

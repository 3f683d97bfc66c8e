package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/plated-ai/nutrition.report/internal/foodvision"
)

const sessionJSON = `{
	"width": 800,
	"height": 600,
	"frame_count": 11,
	"base_plane_depth_m": 0.5,
	"events": [
		{
			"frame_index": 0,
			"detections": [
				{"label": "white plate", "box": [100, 100, 300, 310]},
				{"label": "burger", "box": [150, 150, 250, 250], "top_depth_m": 0.46}
			]
		},
		{
			"frame_index": 5,
			"detections": [
				{"label": "burger", "box": [152, 151, 252, 251], "top_depth_m": 0.46}
			]
		}
	]
}`

func loadTestSession(t *testing.T) *Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(sessionJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func TestLoadSession(t *testing.T) {
	s := loadTestSession(t)
	frames := s.Frames()
	if len(frames) != 11 {
		t.Fatalf("got %d frames, want 11", len(frames))
	}
	if frames[3].Width != 800 || frames[3].Height != 600 {
		t.Errorf("frame dims = %dx%d", frames[3].Width, frames[3].Height)
	}
}

func TestLoadRejectsBadSessions(t *testing.T) {
	cases := []string{
		`{"width": 0, "height": 600, "frame_count": 5}`,
		`{"width": 800, "height": 600, "frame_count": 0}`,
		`{"width": 800, "height": 600, "frame_count": 5,
		  "events": [{"frame_index": 9, "detections": []}]}`,
		`not json`,
	}
	for i, c := range cases {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("case %d should be rejected", i)
		}
	}
}

func TestDetectReplaysEvents(t *testing.T) {
	s := loadTestSession(t)
	frame := foodvision.Frame{Index: 0, Width: 800, Height: 600}

	dets, err := s.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections at frame 0, want 2", len(dets))
	}
	if dets[1].Label != "burger" {
		t.Errorf("label = %q, want burger", dets[1].Label)
	}

	// Frames without events replay as empty.
	none, err := s.Detect(context.Background(), foodvision.Frame{Index: 3, Width: 800, Height: 600})
	if err != nil || len(none) != 0 {
		t.Errorf("frame 3 should have no detections, got %v (%v)", none, err)
	}
}

func TestSegmentFillsBox(t *testing.T) {
	s := loadTestSession(t)
	frame := foodvision.Frame{Index: 0, Width: 800, Height: 600}
	mask, err := s.Segment(context.Background(), frame, [4]float64{10, 10, 30, 20})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if got := mask.PixelCount(); got != 200 {
		t.Errorf("mask pixels = %d, want 200", got)
	}
	if !mask.At(15, 15) || mask.At(5, 5) {
		t.Error("mask should cover exactly the box")
	}
}

func TestDepthReconstruction(t *testing.T) {
	s := loadTestSession(t)
	frame := foodvision.Frame{Index: 0, Width: 800, Height: 600}
	depth, err := s.EstimateDepth(context.Background(), frame)
	if err != nil {
		t.Fatalf("EstimateDepth: %v", err)
	}
	if got := depth.At(10, 10); got != 0.5 {
		t.Errorf("background depth = %v, want base plane 0.5", got)
	}
	if got := depth.At(200, 200); got != 0.46 {
		t.Errorf("burger top depth = %v, want 0.46", got)
	}
}

func TestReplayDrivesPipeline(t *testing.T) {
	s := loadTestSession(t)
	p, err := foodvision.New(foodvision.DefaultConfig(), foodvision.Collaborators{
		Detector: s,
		Segment:  s,
		Depth:    s,
		Lookup:   foodvision.NewStaticKnowledgeBase(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Analyze(context.Background(), s.Frames(), "replay-job")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// Plate and burger tracked; burger matched across both events.
	if len(res.Objects) != 2 {
		t.Fatalf("got %d objects, want 2", len(res.Objects))
	}
	if res.Calibration.Source != foodvision.CalibrationReference {
		t.Errorf("calibration source = %q, want reference_object", res.Calibration.Source)
	}
	if res.Summary.NumFoodItems != 1 {
		t.Errorf("NumFoodItems = %d, want 1 (plate excluded)", res.Summary.NumFoodItems)
	}
}

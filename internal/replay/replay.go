// Package replay drives the analysis pipeline from a recorded session
// file instead of live model services. A session carries the detector
// output and scene depth per detection event; masks and depth maps are
// reconstructed deterministically from the recorded boxes. Useful for
// offline runs, regression fixtures and demos.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/plated-ai/nutrition.report/internal/foodvision"
)

// Detection is one recorded detector output with the scene geometry
// needed to rebuild its depth profile.
type Detection struct {
	Label      string     `json:"label"`
	Box        [4]float64 `json:"box"`
	MassG      *float64   `json:"mass_g,omitempty"`
	Quantity   int        `json:"quantity,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`

	// TopDepthM is the recorded depth of the object's top surface. Zero
	// means "on the plane".
	TopDepthM float64 `json:"top_depth_m,omitempty"`
}

// Event is the recorded detector output for one frame.
type Event struct {
	FrameIndex int         `json:"frame_index"`
	Detections []Detection `json:"detections"`
}

// Session is one recorded analysis input.
type Session struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FrameCount      int     `json:"frame_count"`
	BasePlaneDepthM float64 `json:"base_plane_depth_m"`
	Events          []Event `json:"events"`

	byFrame map[int][]Detection
}

// Load reads and validates a session file.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Session) init() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("session has invalid dimensions %dx%d", s.Width, s.Height)
	}
	if s.FrameCount <= 0 {
		return fmt.Errorf("session has no frames")
	}
	if s.BasePlaneDepthM <= 0 {
		s.BasePlaneDepthM = 0.5
	}
	s.byFrame = make(map[int][]Detection, len(s.Events))
	for _, ev := range s.Events {
		if ev.FrameIndex < 0 || ev.FrameIndex >= s.FrameCount {
			return fmt.Errorf("event frame %d outside session of %d frames", ev.FrameIndex, s.FrameCount)
		}
		s.byFrame[ev.FrameIndex] = ev.Detections
	}
	return nil
}

// Frames returns the frame list of the session.
func (s *Session) Frames() []foodvision.Frame {
	frames := make([]foodvision.Frame, s.FrameCount)
	for i := range frames {
		frames[i] = foodvision.Frame{Index: i, Width: s.Width, Height: s.Height}
	}
	return frames
}

// Detect replays the recorded detections for a frame.
func (s *Session) Detect(_ context.Context, frame foodvision.Frame) ([]foodvision.RawDetection, error) {
	recorded := s.byFrame[frame.Index]
	out := make([]foodvision.RawDetection, 0, len(recorded))
	for _, d := range recorded {
		out = append(out, foodvision.RawDetection{
			Label:      d.Label,
			Box:        d.Box,
			MassG:      d.MassG,
			Quantity:   d.Quantity,
			Confidence: d.Confidence,
		})
	}
	return out, nil
}

// Segment reconstructs an object mask by filling the prompted box.
func (s *Session) Segment(_ context.Context, frame foodvision.Frame, box [4]float64) (*foodvision.Mask, error) {
	m := foodvision.NewMask(frame.Width, frame.Height)
	for y := int(box[1]); y < int(box[3]); y++ {
		for x := int(box[0]); x < int(box[2]); x++ {
			m.Set(x, y)
		}
	}
	return m, nil
}

// EstimateDepth reconstructs the frame's depth map: the base plane
// everywhere, with each recorded detection's box filled at its recorded
// top depth.
func (s *Session) EstimateDepth(_ context.Context, frame foodvision.Frame) (*foodvision.DepthMap, error) {
	d := foodvision.NewDepthMap(frame.Width, frame.Height)
	for i := range d.Meters {
		d.Meters[i] = s.BasePlaneDepthM
	}
	for _, det := range s.byFrame[frame.Index] {
		top := det.TopDepthM
		if top <= 0 {
			top = s.BasePlaneDepthM
		}
		for y := int(det.Box[1]); y < int(det.Box[3]); y++ {
			for x := int(det.Box[0]); x < int(det.Box[2]); x++ {
				d.Set(x, y, top)
			}
		}
	}
	return d, nil
}

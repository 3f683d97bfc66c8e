package foodvision

import (
	"testing"

	"github.com/plated-ai/nutrition.report/internal/geometry"
)

func newTestMerger() *Merger {
	cfg := DefaultConfig()
	return NewMerger(&cfg)
}

func sampleAt(frame int, ml float64) VolumeSample {
	return VolumeSample{FrameIndex: frame, VolumeML: ml, PreCapVolumeML: ml}
}

func TestMergeOverlappingSameLabel(t *testing.T) {
	m := newTestMerger()
	// IoU 0.3 between the two ribs boxes.
	// A = (0,0,100,100), B = (0,0,100,46.15...): iou = 46.15/153.8 ≈ 0.3.
	a := &TrackedObject{ID: 1, Label: "ribs", Box: geometry.NewBox(0, 0, 100, 100)}
	b := &TrackedObject{ID: 2, Label: "ribs", Box: geometry.NewBox(0, 54, 100, 154)}
	histories := map[int64]VolumeHistory{
		1: {sampleAt(0, 100), sampleAt(5, 110)},
		2: {sampleAt(3, 90)},
	}

	objects, events := m.Merge([]*TrackedObject{a, b}, histories)
	if len(objects) != 1 {
		t.Fatalf("got %d objects, want 1", len(objects))
	}
	if len(events) != 1 {
		t.Fatalf("got %d merge events, want 1", len(events))
	}
	kept := objects[0]
	if got := len(histories[kept.ID]); got != 3 {
		t.Errorf("merged history length = %d, want 3 (sum of both)", got)
	}
	// Histories stay ordered by frame.
	h := histories[kept.ID]
	for i := 1; i < len(h); i++ {
		if h[i].FrameIndex < h[i-1].FrameIndex {
			t.Errorf("history out of order at %d: %+v", i, h)
		}
	}
	if len(histories) != 1 {
		t.Errorf("dropped object's history should be deleted, have %d entries", len(histories))
	}
}

func TestMergeKeepsLargerArea(t *testing.T) {
	m := newTestMerger()
	small := &TrackedObject{ID: 1, Label: "rib", Box: geometry.NewBox(10, 10, 60, 60)}
	large := &TrackedObject{ID: 2, Label: "ribs", Box: geometry.NewBox(0, 0, 100, 100)}
	histories := map[int64]VolumeHistory{1: {sampleAt(0, 50)}, 2: {sampleAt(0, 200)}}

	objects, _ := m.Merge([]*TrackedObject{small, large}, histories)
	if len(objects) != 1 || objects[0].ID != 2 {
		t.Fatalf("larger object should keep its identity, got %+v", objects)
	}
}

func TestMergeDistinctItemsUntouched(t *testing.T) {
	m := newTestMerger()
	a := &TrackedObject{ID: 1, Label: "ribs", Box: geometry.NewBox(0, 0, 100, 100)}
	b := &TrackedObject{ID: 2, Label: "ribs", Box: geometry.NewBox(400, 400, 500, 500)}
	c := &TrackedObject{ID: 3, Label: "salad", Box: geometry.NewBox(10, 10, 90, 90)}
	histories := map[int64]VolumeHistory{1: {}, 2: {}, 3: {}}

	objects, events := m.Merge([]*TrackedObject{a, b, c}, histories)
	if len(objects) != 3 {
		t.Fatalf("got %d objects, want 3 (no merges)", len(objects))
	}
	if len(events) != 0 {
		t.Errorf("got %d merge events, want 0", len(events))
	}
}

func TestMergeTransitiveChain(t *testing.T) {
	m := newTestMerger()
	// Three stacked same-label boxes, every pair overlapping enough to
	// satisfy the duplicate predicate; repeated passes collapse all three.
	a := &TrackedObject{ID: 1, Label: "pasta", Box: geometry.NewBox(0, 0, 100, 100)}
	b := &TrackedObject{ID: 2, Label: "pasta", Box: geometry.NewBox(0, 25, 100, 125)}
	c := &TrackedObject{ID: 3, Label: "pasta", Box: geometry.NewBox(0, 50, 100, 150)}
	histories := map[int64]VolumeHistory{
		1: {sampleAt(0, 10)},
		2: {sampleAt(5, 20)},
		3: {sampleAt(10, 30)},
	}

	objects, events := m.Merge([]*TrackedObject{a, b, c}, histories)
	if len(objects) != 1 {
		t.Fatalf("got %d objects, want 1 after transitive merge", len(objects))
	}
	if len(events) != 2 {
		t.Errorf("got %d merge events, want 2", len(events))
	}
	if got := len(histories[objects[0].ID]); got != 3 {
		t.Errorf("merged history length = %d, want 3", got)
	}
}

func TestMergeEventMetadata(t *testing.T) {
	m := newTestMerger()
	a := &TrackedObject{ID: 1, Label: "ribs", Box: geometry.NewBox(0, 0, 100, 100)}
	b := &TrackedObject{ID: 2, Label: "ribs", Box: geometry.NewBox(0, 54, 100, 154)}
	histories := map[int64]VolumeHistory{1: {}, 2: {sampleAt(0, 10), sampleAt(5, 12)}}

	_, events := m.Merge([]*TrackedObject{a, b}, histories)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.KeptID != 1 || ev.DroppedID != 2 {
		t.Errorf("event IDs = %d/%d, want 1/2", ev.KeptID, ev.DroppedID)
	}
	if ev.SamplesAbsorbed != 2 {
		t.Errorf("SamplesAbsorbed = %d, want 2", ev.SamplesAbsorbed)
	}
	if ev.IoU <= 0 {
		t.Errorf("IoU = %v, want > 0", ev.IoU)
	}
}

package foodvision

import (
	"sort"

	"github.com/plated-ai/nutrition.report/internal/geometry"
	"github.com/plated-ai/nutrition.report/internal/monitoring"
)

// Merger is the post-processing pass that collapses TrackedObjects which
// are really the same physical item seen under slightly different boxes.
// It runs once, after all frames.
type Merger struct {
	cfg *Config
}

// NewMerger returns a Merger using the given tuning config.
func NewMerger(cfg *Config) *Merger {
	return &Merger{cfg: cfg}
}

// Merge collapses duplicate objects in place: for every pair with equal
// normalized labels satisfying the spatial duplicate predicate, the
// larger-area object keeps its identity and absorbs the smaller one's
// volume history. Histories is mutated; dropped IDs are deleted from it.
// Repeated pairwise passes make merging transitive; ties always favor the
// larger object, so the result is stable regardless of pass order.
func (m *Merger) Merge(objects []*TrackedObject, histories map[int64]VolumeHistory) ([]*TrackedObject, []MergeEvent) {
	var events []MergeEvent

	merged := true
	for merged {
		merged = false
		sort.Slice(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })
		for i := 0; i < len(objects) && !merged; i++ {
			for j := i + 1; j < len(objects); j++ {
				a, b := objects[i], objects[j]
				if NormalizeLabel(a.Label) != NormalizeLabel(b.Label) {
					continue
				}
				if !m.isDuplicate(a, b) {
					continue
				}
				keep, drop := a, b
				if b.Box.Area() > a.Box.Area() {
					keep, drop = b, a
				}
				events = append(events, m.absorb(keep, drop, histories))
				objects = removeObject(objects, drop.ID)
				merged = true
				break
			}
		}
	}
	return objects, events
}

// isDuplicate applies the same spatial predicate as detection-time
// duplicate suppression to two tracked objects.
func (m *Merger) isDuplicate(a, b *TrackedObject) bool {
	if geometry.IoU(a.Box, b.Box) > m.cfg.DuplicateIoU {
		return true
	}
	extent := (a.Box.Width() + a.Box.Height() + b.Box.Width() + b.Box.Height()) / 4
	if geometry.CenterDistance(a.Box, b.Box) < m.cfg.CenterDistanceRatio*extent {
		small, large := a.Box.Area(), b.Box.Area()
		if small > large {
			small, large = large, small
		}
		if large > 0 && small/large > m.cfg.SizeRatioThreshold {
			return true
		}
	}
	if geometry.Contains(a.Box, b.Box) || geometry.Contains(b.Box, a.Box) {
		small, large := a.Box.Area(), b.Box.Area()
		if small > large {
			small, large = large, small
		}
		if small > 0 && large/small > m.cfg.ContainmentRatio {
			return true
		}
	}
	return false
}

// absorb merges drop into keep: histories concatenate in frame order,
// seen-frame ranges widen, external hints transfer when keep has none.
func (m *Merger) absorb(keep, drop *TrackedObject, histories map[int64]VolumeHistory) MergeEvent {
	absorbed := histories[drop.ID]
	combined := append(histories[keep.ID], absorbed...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].FrameIndex < combined[j].FrameIndex
	})
	histories[keep.ID] = combined
	delete(histories, drop.ID)

	if drop.FirstSeenFrame < keep.FirstSeenFrame {
		keep.FirstSeenFrame = drop.FirstSeenFrame
	}
	if drop.LastSeenFrame > keep.LastSeenFrame {
		keep.LastSeenFrame = drop.LastSeenFrame
	}
	if keep.ExternalMassG == nil {
		keep.ExternalMassG = drop.ExternalMassG
	}
	if drop.ExternalQuantity > keep.ExternalQuantity {
		keep.ExternalQuantity = drop.ExternalQuantity
	}

	ev := MergeEvent{
		KeptID:          keep.ID,
		DroppedID:       drop.ID,
		Label:           NormalizeLabel(keep.Label),
		IoU:             geometry.IoU(keep.Box, drop.Box),
		CenterDistance:  geometry.CenterDistance(keep.Box, drop.Box),
		SamplesAbsorbed: len(absorbed),
	}
	monitoring.Logf("merge: object %d absorbed %d (%q, iou=%.2f, %d samples)",
		ev.KeptID, ev.DroppedID, ev.Label, ev.IoU, ev.SamplesAbsorbed)
	return ev
}

func removeObject(objects []*TrackedObject, id int64) []*TrackedObject {
	out := objects[:0]
	for _, o := range objects {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}

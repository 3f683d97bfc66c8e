package foodvision

import (
	"sort"

	"github.com/plated-ai/nutrition.report/internal/geometry"
	"github.com/plated-ai/nutrition.report/internal/monitoring"
)

// Tracker maintains persistent food-item identities across detection
// events. It owns all writes to TrackedObjects; the rest of the pipeline
// only reads. One Tracker per job, never shared.
type Tracker struct {
	Objects     map[int64]*TrackedObject
	NextTrackID int64
	cfg         *Config
}

// NewTracker returns an empty tracker. IDs start at 1 and increase strictly
// for the lifetime of the run.
func NewTracker(cfg *Config) *Tracker {
	return &Tracker{
		Objects:     make(map[int64]*TrackedObject),
		NextTrackID: 1,
		cfg:         cfg,
	}
}

// candidate is one (object, detection) pair considered for matching.
type candidate struct {
	objectID int64
	detIndex int
	iou      float64
}

// Update runs one detection event: greedy one-to-one IoU matching of
// current objects against the new batch, in-place updates for matches, new
// identities for unmatched detections. Unmatched objects persist with
// their last known box; they are only retired when MaxMissedDetections is
// configured and exceeded.
func (t *Tracker) Update(items []DetectedItem, frameIndex int) {
	candidates := make([]candidate, 0, len(t.Objects)*len(items))
	for id, obj := range t.Objects {
		if obj.Retired {
			continue
		}
		for i, it := range items {
			iou := geometry.IoU(obj.Box, it.Box)
			if iou > t.cfg.MatchIoU {
				candidates = append(candidates, candidate{objectID: id, detIndex: i, iou: iou})
			}
		}
	}
	// Highest IoU first; object ID breaks ties so matching is deterministic
	// regardless of map iteration order.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].iou != candidates[j].iou {
			return candidates[i].iou > candidates[j].iou
		}
		if candidates[i].objectID != candidates[j].objectID {
			return candidates[i].objectID < candidates[j].objectID
		}
		return candidates[i].detIndex < candidates[j].detIndex
	})

	matchedObjects := make(map[int64]bool)
	matchedDetections := make(map[int]bool)
	for _, c := range candidates {
		if matchedObjects[c.objectID] || matchedDetections[c.detIndex] {
			continue
		}
		matchedObjects[c.objectID] = true
		matchedDetections[c.detIndex] = true

		obj := t.Objects[c.objectID]
		it := items[c.detIndex]
		// Label may change between re-detections; identity is positional.
		if obj.Label != it.Label {
			monitoring.Debugf("tracker: object %d relabeled %q -> %q", obj.ID, obj.Label, it.Label)
		}
		obj.Label = it.Label
		obj.Box = it.Box
		obj.LastSeenFrame = frameIndex
		obj.MissedEvents = 0
		if it.MassG != nil {
			obj.ExternalMassG = it.MassG
		}
		if it.Quantity > obj.ExternalQuantity {
			obj.ExternalQuantity = it.Quantity
		}
	}

	for i, it := range items {
		if matchedDetections[i] {
			continue
		}
		obj := &TrackedObject{
			ID:               t.NextTrackID,
			Label:            it.Label,
			Box:              it.Box,
			FirstSeenFrame:   frameIndex,
			LastSeenFrame:    frameIndex,
			ExternalMassG:    it.MassG,
			ExternalQuantity: it.Quantity,
		}
		t.Objects[obj.ID] = obj
		t.NextTrackID++
		monitoring.Debugf("tracker: new object %d %q at frame %d", obj.ID, obj.Label, frameIndex)
	}

	for id, obj := range t.Objects {
		if matchedObjects[id] || obj.Retired || obj.FirstSeenFrame == frameIndex {
			continue
		}
		obj.MissedEvents++
		if t.cfg.MaxMissedDetections > 0 && obj.MissedEvents > t.cfg.MaxMissedDetections {
			obj.Retired = true
			monitoring.Logf("tracker: retiring object %d %q after %d missed events",
				obj.ID, obj.Label, obj.MissedEvents)
		}
	}
}

// Active returns the non-retired objects in ascending ID order.
func (t *Tracker) Active() []*TrackedObject {
	out := make([]*TrackedObject, 0, len(t.Objects))
	for _, obj := range t.Objects {
		if !obj.Retired {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every object, retired included, in ascending ID order.
func (t *Tracker) All() []*TrackedObject {
	out := make([]*TrackedObject, 0, len(t.Objects))
	for _, obj := range t.Objects {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

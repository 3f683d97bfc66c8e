package foodvision

import (
	"github.com/plated-ai/nutrition.report/internal/geometry"
	"github.com/plated-ai/nutrition.report/internal/monitoring"
)

// Normalizer converts heterogeneous raw detector output into a canonical
// DetectedItem list. Detector variants disagree on coordinate hygiene and
// label quality, so everything funnels through here before tracking.
type Normalizer struct {
	cfg *Config
}

// NewNormalizer returns a Normalizer using the given tuning config.
func NewNormalizer(cfg *Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize applies clamping, label filters, duplicate suppression and the
// oversize-box pass to one detection batch.
func (n *Normalizer) Normalize(raw []RawDetection, frame Frame) []DetectedItem {
	items := make([]DetectedItem, 0, len(raw))
	for _, r := range raw {
		box := geometry.NewBox(r.Box[0], r.Box[1], r.Box[2], r.Box[3]).
			Clamp(float64(frame.Width), float64(frame.Height))
		if box.Empty() {
			continue
		}
		if n.cfg.isGenericLabel(r.Label) {
			monitoring.Debugf("normalize: dropping generic label %q", r.Label)
			continue
		}
		if box.Area() < n.cfg.MinBoxArea {
			continue
		}
		if n.cfg.HallucinationScreen && IsLikelyHallucination(r.Label) {
			monitoring.Logf("normalize: dropping implausible label %q", r.Label)
			continue
		}
		qty := r.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, DetectedItem{
			Label:      r.Label,
			Box:        box,
			MassG:      r.MassG,
			Quantity:   qty,
			Confidence: r.Confidence,
		})
	}

	items = n.suppressDuplicates(items)
	return n.dropOversize(items)
}

// isDuplicatePair applies the spatial duplicate predicate to two items with
// related labels.
func (n *Normalizer) isDuplicatePair(a, b DetectedItem) bool {
	if geometry.IoU(a.Box, b.Box) > n.cfg.DuplicateIoU {
		return true
	}
	extent := (a.Box.Width() + a.Box.Height() + b.Box.Width() + b.Box.Height()) / 4
	if geometry.CenterDistance(a.Box, b.Box) < n.cfg.CenterDistanceRatio*extent {
		small, large := a.Box.Area(), b.Box.Area()
		if small > large {
			small, large = large, small
		}
		if large > 0 && small/large > n.cfg.SizeRatioThreshold {
			return true
		}
	}
	if geometry.Contains(a.Box, b.Box) || geometry.Contains(b.Box, a.Box) {
		small, large := a.Box.Area(), b.Box.Area()
		if small > large {
			small, large = large, small
		}
		if small > 0 && large/small > n.cfg.ContainmentRatio {
			return true
		}
	}
	return false
}

// preferFirst reports whether item a should be kept over duplicate b:
// larger area wins, with label descriptiveness as the tiebreak.
func preferFirst(a, b DetectedItem) bool {
	if a.Box.Area() != b.Box.Area() {
		return a.Box.Area() > b.Box.Area()
	}
	return !MoreDescriptive(b.Label, a.Label)
}

// suppressDuplicates removes detections that describe the same physical
// item under related labels.
func (n *Normalizer) suppressDuplicates(items []DetectedItem) []DetectedItem {
	dropped := make([]bool, len(items))
	for i := range items {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if dropped[j] {
				continue
			}
			if !LabelsRelated(NormalizeLabel(items[i].Label), NormalizeLabel(items[j].Label)) {
				continue
			}
			if !n.isDuplicatePair(items[i], items[j]) {
				continue
			}
			if preferFirst(items[i], items[j]) {
				dropped[j] = true
				monitoring.Debugf("normalize: %q duplicates %q, dropped", items[j].Label, items[i].Label)
			} else {
				dropped[i] = true
				monitoring.Debugf("normalize: %q duplicates %q, dropped", items[i].Label, items[j].Label)
				break
			}
		}
	}
	out := items[:0]
	for i, it := range items {
		if !dropped[i] {
			out = append(out, it)
		}
	}
	return out
}

// dropOversize removes boxes whose area exceeds the configured multiple of
// the mean area of same-label detections. A single huge box around a group
// of items is a region mis-detection, not an item; the pass only fires when
// at least two same-label detections exist.
func (n *Normalizer) dropOversize(items []DetectedItem) []DetectedItem {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, it := range items {
		key := NormalizeLabel(it.Label)
		sums[key] += it.Box.Area()
		counts[key]++
	}
	out := items[:0]
	for _, it := range items {
		key := NormalizeLabel(it.Label)
		if counts[key] >= 2 {
			mean := sums[key] / float64(counts[key])
			if it.Box.Area() > n.cfg.OversizeAreaFactor*mean {
				monitoring.Logf("normalize: dropping oversize %q box (%.0fpx2 vs mean %.0fpx2)",
					it.Label, it.Box.Area(), mean)
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

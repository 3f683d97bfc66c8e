package foodvision

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/plated-ai/nutrition.report/internal/monitoring"
)

// FallbackVolumePerAreaCM is the default assumed height for objects that
// finished the run without samples and that the bulk estimator could not
// answer: volume_ml = visible area_cm2 x height. Config.FallbackHeightCM
// overrides it.
const FallbackVolumePerAreaCM = 2.0

// Aggregator converts final per-object volume statistics into nutrition
// records and the meal-level summary.
type Aggregator struct {
	cfg    *Config
	lookup NutritionLookup
	bulk   BulkVolumeEstimator // optional
}

// NewAggregator returns an Aggregator. bulk may be nil; the deterministic
// area-based fallback then covers zero-history objects.
func NewAggregator(cfg *Config, lookup NutritionLookup, bulk BulkVolumeEstimator) *Aggregator {
	return &Aggregator{cfg: cfg, lookup: lookup, bulk: bulk}
}

// Aggregate produces the final object results and meal summary. Every
// object appears in the result; non-food objects carry a nil nutrition
// record and are excluded from the totals. The only fatal condition is a
// knowledge base that fails for every single lookup of the run.
func (a *Aggregator) Aggregate(ctx context.Context, objects []*TrackedObject,
	histories map[int64]VolumeHistory, cal CalibrationState) ([]*ObjectResult, MealSummary, error) {

	results := make([]*ObjectResult, 0, len(objects))
	for _, obj := range objects {
		history := histories[obj.ID]
		results = append(results, &ObjectResult{
			Object:     obj,
			History:    history,
			Statistics: summarize(history),
		})
	}

	a.fillEstimatedVolumes(ctx, results, cal)

	var summary MealSummary
	lookups, lookupErrors := 0, 0
	for _, r := range results {
		if a.cfg.IsNonFood(r.Object.Label) {
			monitoring.Debugf("nutrition: skipping non-food %q", r.Object.Label)
			continue
		}
		rec, lookedUp, err := a.resolve(ctx, r)
		if lookedUp {
			lookups++
		}
		if err != nil {
			lookupErrors++
			monitoring.Logf("nutrition: lookup failed for %q: %v", r.Object.Label, err)
		}
		r.Nutrition = rec

		summary.TotalVolumeML += rec.VolumeML
		summary.TotalMassG += rec.MassG
		summary.TotalCaloriesKC += rec.TotalCalories
		summary.NumFoodItems++
	}

	if lookups > 0 && lookupErrors == lookups {
		return nil, MealSummary{}, fmt.Errorf("nutrition knowledge base unreachable: %d/%d lookups failed", lookupErrors, lookups)
	}
	return results, summary, nil
}

// summarize computes the reporting statistics over one volume history.
// The maximum observed volume is the representative one: the best view of
// an item over the run is the frame where most of it was visible.
func summarize(history VolumeHistory) ObjectStatistics {
	if len(history) == 0 {
		return ObjectStatistics{}
	}
	volumes := make([]float64, 0, len(history))
	s := ObjectStatistics{NumSamples: len(history)}
	for _, v := range history {
		volumes = append(volumes, v.VolumeML)
		if v.VolumeML > s.MaxVolumeML {
			s.MaxVolumeML = v.VolumeML
		}
		if v.HeightCM > s.MaxHeightCM {
			s.MaxHeightCM = v.HeightCM
		}
		if v.AreaCM2 > s.MaxAreaCM2 {
			s.MaxAreaCM2 = v.AreaCM2
		}
	}
	sort.Float64s(volumes)
	s.MedianVolumeML = stat.Quantile(0.5, stat.Empirical, volumes, nil)
	s.MeanVolumeML = stat.Mean(volumes, nil)
	return s
}

// fillEstimatedVolumes substitutes volumes for objects that never produced
// a measured sample. All zero-history items go to the bulk estimator in a
// single batched call when one is configured; anything it cannot answer
// falls back to the deterministic area heuristic.
func (a *Aggregator) fillEstimatedVolumes(ctx context.Context, results []*ObjectResult, cal CalibrationState) {
	var pending []*ObjectResult
	var requests []VolumeEstimateRequest
	for _, r := range results {
		if r.Statistics.NumSamples > 0 {
			continue
		}
		areaCM2 := visibleAreaCM2(r.Object, cal)
		r.Statistics.MaxAreaCM2 = areaCM2
		pending = append(pending, r)
		requests = append(requests, VolumeEstimateRequest{
			ObjectID: r.Object.ID,
			Label:    r.Object.Label,
			AreaCM2:  areaCM2,
		})
	}
	if len(pending) == 0 {
		return
	}

	estimates := map[int64]float64{}
	if a.bulk != nil {
		got, err := a.bulk.EstimateVolumes(ctx, requests)
		if err != nil {
			monitoring.Logf("nutrition: bulk volume estimation failed: %v", err)
		} else {
			estimates = got
		}
	}
	fallbackHeight := a.cfg.FallbackHeightCM
	if fallbackHeight <= 0 {
		fallbackHeight = FallbackVolumePerAreaCM
	}
	for _, r := range pending {
		vol, ok := estimates[r.Object.ID]
		if !ok || vol <= 0 {
			vol = r.Statistics.MaxAreaCM2 * fallbackHeight
		}
		if vol > AbsoluteMaxVolumeML {
			vol = AbsoluteMaxVolumeML
		}
		r.Statistics.MaxVolumeML = vol
		r.Statistics.MedianVolumeML = vol
		r.Statistics.MeanVolumeML = vol
		r.Statistics.Estimated = true
		monitoring.Logf("nutrition: estimated %.1fml for unsampled %q (object %d)",
			vol, r.Object.Label, r.Object.ID)
	}
}

// visibleAreaCM2 converts an object's current box area to cm2 using the
// job calibration, with the default scale as a last resort.
func visibleAreaCM2(obj *TrackedObject, cal CalibrationState) float64 {
	ppcm := cal.PixelsPerCM
	if ppcm <= 0 {
		ppcm = DefaultConfig().DefaultPixelsPerCM
	}
	return obj.Box.Area() / (ppcm * ppcm)
}

// resolve builds the nutrition record for one food object. lookedUp
// reports whether a knowledge-base call was attempted, so the caller can
// distinguish a dead knowledge base from a run that never needed it.
func (a *Aggregator) resolve(ctx context.Context, r *ObjectResult) (*NutritionRecord, bool, error) {
	obj := r.Object
	quantity := obj.ExternalQuantity
	if quantity < 1 {
		quantity = 1
	}
	rec := &NutritionRecord{
		FoodName:  obj.Label,
		VolumeML:  r.Statistics.MaxVolumeML,
		Quantity:  quantity,
		Estimated: r.Statistics.Estimated,
	}

	info, found, err := a.lookup.Lookup(ctx, obj.Label)
	lookedUp := true
	switch {
	case err != nil:
		rec.DensityGPerML = DefaultDensityGPerML
		rec.CaloriesPer100G = DefaultCaloriesPer100G
		rec.Source = SourceDefault
	case found:
		rec.MatchedFood = info.MatchedName
		rec.DensityGPerML = info.DensityGPerML
		rec.CaloriesPer100G = info.CaloriesPer100G
		rec.Source = SourceKnowledgeBase
	default:
		rec.DensityGPerML = DefaultDensityGPerML
		rec.CaloriesPer100G = DefaultCaloriesPer100G
		rec.Source = SourceDefault
	}

	if obj.ExternalMassG != nil && *obj.ExternalMassG > 0 {
		rec.MassG = *obj.ExternalMassG * float64(quantity)
		rec.Source = SourceExternalOverride
	} else {
		rec.MassG = rec.VolumeML * rec.DensityGPerML
	}
	rec.TotalCalories = rec.MassG / 100 * rec.CaloriesPer100G
	return rec, lookedUp, err
}

package foodvision

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/plated-ai/nutrition.report/internal/geometry"
)

type fixedLookup struct {
	info  NutritionInfo
	found bool
	err   error
	calls int
}

func (f *fixedLookup) Lookup(_ context.Context, _ string) (NutritionInfo, bool, error) {
	f.calls++
	return f.info, f.found, f.err
}

type recordingBulk struct {
	calls     int
	estimates map[int64]float64
	lastBatch []VolumeEstimateRequest
}

func (r *recordingBulk) EstimateVolumes(_ context.Context, items []VolumeEstimateRequest) (map[int64]float64, error) {
	r.calls++
	r.lastBatch = items
	return r.estimates, nil
}

func pizzaLookup() *fixedLookup {
	return &fixedLookup{
		info:  NutritionInfo{MatchedName: "pizza", DensityGPerML: 0.55, CaloriesPer100G: 266},
		found: true,
	}
}

func TestAggregateMeasuredObject(t *testing.T) {
	cfg := DefaultConfig()
	lookup := pizzaLookup()
	agg := NewAggregator(&cfg, lookup, nil)

	obj := &TrackedObject{ID: 1, Label: "pizza", Box: geometry.NewBox(0, 0, 100, 100)}
	histories := map[int64]VolumeHistory{
		1: {sampleAt(0, 300), sampleAt(5, 400), sampleAt(10, 350)},
	}

	results, summary, err := agg.Aggregate(context.Background(), []*TrackedObject{obj}, histories, calibrated(10, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Statistics.MaxVolumeML != 400 {
		t.Errorf("representative volume = %v, want the max 400", r.Statistics.MaxVolumeML)
	}
	if r.Statistics.MedianVolumeML != 350 {
		t.Errorf("median = %v, want 350", r.Statistics.MedianVolumeML)
	}
	if r.Nutrition == nil {
		t.Fatal("food object should carry a nutrition record")
	}
	wantMass := 400 * 0.55
	if math.Abs(r.Nutrition.MassG-wantMass) > 1e-9 {
		t.Errorf("mass = %v, want %v", r.Nutrition.MassG, wantMass)
	}
	wantKcal := wantMass / 100 * 266
	if math.Abs(r.Nutrition.TotalCalories-wantKcal) > 1e-9 {
		t.Errorf("calories = %v, want %v", r.Nutrition.TotalCalories, wantKcal)
	}
	if r.Nutrition.Source != SourceKnowledgeBase {
		t.Errorf("source = %q, want knowledge_base", r.Nutrition.Source)
	}
	if summary.NumFoodItems != 1 {
		t.Errorf("NumFoodItems = %d, want 1", summary.NumFoodItems)
	}
	if math.Abs(summary.TotalCaloriesKC-wantKcal) > 1e-9 {
		t.Errorf("summary calories = %v, want %v", summary.TotalCaloriesKC, wantKcal)
	}
}

func TestAggregateNonFoodExcluded(t *testing.T) {
	cfg := DefaultConfig()
	agg := NewAggregator(&cfg, pizzaLookup(), nil)

	plate := &TrackedObject{ID: 1, Label: "white plate", Box: geometry.NewBox(0, 0, 300, 300)}
	pizza := &TrackedObject{ID: 2, Label: "pizza", Box: geometry.NewBox(50, 50, 250, 250)}
	histories := map[int64]VolumeHistory{1: {sampleAt(0, 900)}, 2: {sampleAt(0, 400)}}

	results, summary, err := agg.Aggregate(context.Background(), []*TrackedObject{plate, pizza}, histories, calibrated(10, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("all objects appear in results, got %d", len(results))
	}
	if results[0].Nutrition != nil {
		t.Error("plate should carry no nutrition record")
	}
	if summary.NumFoodItems != 1 {
		t.Errorf("NumFoodItems = %d, want 1 (plate excluded)", summary.NumFoodItems)
	}
	if summary.TotalVolumeML != 400 {
		t.Errorf("total volume = %v, want 400 (plate excluded)", summary.TotalVolumeML)
	}
}

func TestAggregateZeroHistoryFallback(t *testing.T) {
	cfg := DefaultConfig()
	agg := NewAggregator(&cfg, pizzaLookup(), nil)

	// 100x100px box at 10 px/cm: visible area 100cm2, fallback 200ml.
	obj := &TrackedObject{ID: 1, Label: "pizza", Box: geometry.NewBox(0, 0, 100, 100)}
	results, summary, err := agg.Aggregate(context.Background(), []*TrackedObject{obj},
		map[int64]VolumeHistory{}, calibrated(10, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := results[0]
	if !r.Statistics.Estimated {
		t.Error("zero-history object should be flagged estimated")
	}
	if r.Nutrition == nil || !r.Nutrition.Estimated {
		t.Error("nutrition record should carry the estimated flag")
	}
	if math.Abs(r.Statistics.MaxVolumeML-200) > 1e-9 {
		t.Errorf("fallback volume = %v, want area x 2.0 = 200", r.Statistics.MaxVolumeML)
	}
	if summary.NumFoodItems != 1 {
		t.Error("estimated object still counts toward the summary")
	}
}

func TestAggregateFallbackHeightOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackHeightCM = 5.0
	agg := NewAggregator(&cfg, pizzaLookup(), nil)

	// 100x100px box at 10 px/cm: 100cm2 x overridden 5.0cm = 500ml.
	obj := &TrackedObject{ID: 1, Label: "burger", Box: geometry.NewBox(0, 0, 100, 100)}
	results, _, err := agg.Aggregate(context.Background(), []*TrackedObject{obj},
		map[int64]VolumeHistory{}, calibrated(10, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := results[0].Statistics.MaxVolumeML; math.Abs(got-500) > 1e-9 {
		t.Errorf("fallback volume = %v, want area x 5.0 = 500", got)
	}
}

func TestAggregateBulkEstimatorSingleCall(t *testing.T) {
	cfg := DefaultConfig()
	bulk := &recordingBulk{estimates: map[int64]float64{1: 250, 2: 120}}
	agg := NewAggregator(&cfg, pizzaLookup(), bulk)

	a := &TrackedObject{ID: 1, Label: "pasta", Box: geometry.NewBox(0, 0, 100, 100)}
	b := &TrackedObject{ID: 2, Label: "salad", Box: geometry.NewBox(200, 0, 300, 100)}
	c := &TrackedObject{ID: 3, Label: "pizza", Box: geometry.NewBox(0, 200, 100, 300)}
	histories := map[int64]VolumeHistory{3: {sampleAt(0, 400)}}

	results, _, err := agg.Aggregate(context.Background(), []*TrackedObject{a, b, c}, histories, calibrated(10, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bulk.calls != 1 {
		t.Errorf("bulk estimator called %d times, want exactly 1 batched call", bulk.calls)
	}
	if len(bulk.lastBatch) != 2 {
		t.Errorf("batch size = %d, want 2 zero-history items", len(bulk.lastBatch))
	}
	if results[0].Statistics.MaxVolumeML != 250 {
		t.Errorf("object 1 volume = %v, want bulk estimate 250", results[0].Statistics.MaxVolumeML)
	}
	if results[2].Statistics.Estimated {
		t.Error("measured object must not be flagged estimated")
	}
}

func TestAggregateExternalMassOverride(t *testing.T) {
	cfg := DefaultConfig()
	agg := NewAggregator(&cfg, pizzaLookup(), nil)

	mass := 180.0
	obj := &TrackedObject{ID: 1, Label: "pizza", Box: geometry.NewBox(0, 0, 100, 100),
		ExternalMassG: &mass, ExternalQuantity: 2}
	histories := map[int64]VolumeHistory{1: {sampleAt(0, 400)}}

	results, _, err := agg.Aggregate(context.Background(), []*TrackedObject{obj}, histories, calibrated(10, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := results[0].Nutrition
	if rec.Source != SourceExternalOverride {
		t.Errorf("source = %q, want external_override", rec.Source)
	}
	if rec.MassG != 360 {
		t.Errorf("mass = %v, want 180 x quantity 2 = 360", rec.MassG)
	}
	// Calories still derive from the knowledge-base figure.
	if math.Abs(rec.TotalCalories-360.0/100*266) > 1e-9 {
		t.Errorf("calories = %v", rec.TotalCalories)
	}
}

func TestAggregateUnknownFoodDefaults(t *testing.T) {
	cfg := DefaultConfig()
	agg := NewAggregator(&cfg, &fixedLookup{found: false}, nil)

	obj := &TrackedObject{ID: 1, Label: "mystery stew", Box: geometry.NewBox(0, 0, 100, 100)}
	histories := map[int64]VolumeHistory{1: {sampleAt(0, 200)}}

	results, _, err := agg.Aggregate(context.Background(), []*TrackedObject{obj}, histories, calibrated(10, 0.5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := results[0].Nutrition
	if rec.Source != SourceDefault {
		t.Errorf("source = %q, want default", rec.Source)
	}
	if rec.DensityGPerML != DefaultDensityGPerML || rec.CaloriesPer100G != DefaultCaloriesPer100G {
		t.Errorf("defaults not applied: %+v", rec)
	}
}

func TestAggregateDeadKnowledgeBaseFatal(t *testing.T) {
	cfg := DefaultConfig()
	agg := NewAggregator(&cfg, &fixedLookup{err: errors.New("connection refused")}, nil)

	obj := &TrackedObject{ID: 1, Label: "pizza", Box: geometry.NewBox(0, 0, 100, 100)}
	histories := map[int64]VolumeHistory{1: {sampleAt(0, 200)}}

	_, _, err := agg.Aggregate(context.Background(), []*TrackedObject{obj}, histories, calibrated(10, 0.5))
	if err == nil {
		t.Fatal("a knowledge base failing every lookup should abort the job")
	}
}

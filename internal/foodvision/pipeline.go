package foodvision

import (
	"context"
	"errors"
	"fmt"

	"github.com/plated-ai/nutrition.report/internal/monitoring"
)

// ErrNoFrames is returned when a job is started with no usable frames.
var ErrNoFrames = errors.New("no frames to analyze")

// Collaborators bundles the external services the pipeline depends on.
// Detector, Segmenter and Depth are required; Bulk is optional. Lookup is
// required because a run without any nutrition resolution is useless.
type Collaborators struct {
	Detector Detector
	Segment  Segmenter
	Depth    DepthEstimator
	Lookup   NutritionLookup
	Bulk     BulkVolumeEstimator
}

// Pipeline runs one meal analysis job: periodic detection, identity
// tracking, one-time calibration, per-object volume accrual, and the
// finalization passes. A Pipeline is cheap to construct and safe to reuse
// across jobs; all per-job state lives inside Analyze.
type Pipeline struct {
	cfg   Config
	deps  Collaborators
	norm  *Normalizer
	volum *VolumeEstimator
	merge *Merger
	agg   *Aggregator
}

// New returns a Pipeline over the given collaborators.
func New(cfg Config, deps Collaborators) (*Pipeline, error) {
	if deps.Detector == nil || deps.Segment == nil || deps.Depth == nil || deps.Lookup == nil {
		return nil, errors.New("detector, segmenter, depth estimator and nutrition lookup are required")
	}
	p := &Pipeline{cfg: cfg, deps: deps}
	p.norm = NewNormalizer(&p.cfg)
	p.volum = NewVolumeEstimator(&p.cfg)
	p.merge = NewMerger(&p.cfg)
	p.agg = NewAggregator(&p.cfg, deps.Lookup, deps.Bulk)
	return p, nil
}

// Analyze processes the frames of one job in order and returns the full
// result. Collaborator failures are non-fatal: a failed detection event
// contributes zero detections, a failed depth or segmentation call skips
// volume accrual for that frame. Only an empty frame list, cancellation,
// or a completely unreachable knowledge base abort the job.
func (p *Pipeline) Analyze(ctx context.Context, frames []Frame, jobID string) (*Result, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	tracker := NewTracker(&p.cfg)
	calibrator := NewCalibrator(&p.cfg)
	histories := make(map[int64]VolumeHistory)
	var detectionLog []DetectionEvent

	interval := p.cfg.DetectionInterval
	if interval < 1 {
		interval = 1
	}

	monitoring.Logf("[%s] analyzing %d frames (detection every %d)", jobID, len(frames), interval)

	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("job %s canceled at frame %d: %w", jobID, frame.Index, err)
		}
		if i%interval != 0 {
			continue
		}

		items := p.detect(ctx, frame, jobID)
		detectionLog = append(detectionLog, logEvent(frame, items))
		tracker.Update(items, frame.Index)

		depthMap := p.estimateDepth(ctx, frame, jobID)

		if !calibrator.State().Calibrated {
			calibrator.Calibrate(referenceCandidate(&p.cfg, tracker.Active()), depthMap)
		}

		p.accrueVolumes(ctx, frame, tracker, calibrator.State(), depthMap, histories)
	}

	objects, mergeEvents := p.merge.Merge(tracker.All(), histories)

	results, summary, err := p.agg.Aggregate(ctx, objects, histories, calibrator.State())
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}

	monitoring.Logf("[%s] done: %d objects, %d food items, %.0f kcal",
		jobID, len(results), summary.NumFoodItems, summary.TotalCaloriesKC)

	return &Result{
		JobID:       jobID,
		Objects:     results,
		Summary:     summary,
		Calibration: calibrator.State(),
		Detections:  detectionLog,
		Merges:      mergeEvents,
		FrameCount:  len(frames),
	}, nil
}

// detect runs one detection event. Errors and empty batches both yield an
// empty item list; the event still counts for the tracker's miss counters.
func (p *Pipeline) detect(ctx context.Context, frame Frame, jobID string) []DetectedItem {
	raw, err := p.deps.Detector.Detect(ctx, frame)
	if err != nil {
		monitoring.Logf("[%s] detection failed at frame %d: %v", jobID, frame.Index, err)
		return nil
	}
	return p.norm.Normalize(raw, frame)
}

func (p *Pipeline) estimateDepth(ctx context.Context, frame Frame, jobID string) *DepthMap {
	depthMap, err := p.deps.Depth.EstimateDepth(ctx, frame)
	if err != nil {
		monitoring.Logf("[%s] depth estimation failed at frame %d: %v", jobID, frame.Index, err)
		return nil
	}
	return depthMap
}

// accrueVolumes appends one volume sample for every object re-detected in
// this frame. Segmentation failures skip the object, never the job.
func (p *Pipeline) accrueVolumes(ctx context.Context, frame Frame, tracker *Tracker,
	cal CalibrationState, depthMap *DepthMap, histories map[int64]VolumeHistory) {

	if depthMap == nil {
		return
	}
	for _, obj := range tracker.Active() {
		if obj.LastSeenFrame != frame.Index {
			continue
		}
		box := [4]float64{obj.Box.X1, obj.Box.Y1, obj.Box.X2, obj.Box.Y2}
		mask, err := p.deps.Segment.Segment(ctx, frame, box)
		if err != nil {
			monitoring.Logf("segmentation failed for object %d at frame %d: %v", obj.ID, frame.Index, err)
			continue
		}
		sample, ok := p.volum.Estimate(mask, depthMap, obj, cal, frame.Index)
		if !ok {
			continue
		}
		histories[obj.ID] = append(histories[obj.ID], sample)
	}
}

// referenceCandidate picks the widest reference-labeled object as the
// calibration target, or nil when none is visible.
func referenceCandidate(cfg *Config, objects []*TrackedObject) *TrackedObject {
	var best *TrackedObject
	for _, obj := range objects {
		if cfg.ReferenceKind(obj.Label) == "" {
			continue
		}
		if best == nil || obj.Box.Width() > best.Box.Width() {
			best = obj
		}
	}
	return best
}

func logEvent(frame Frame, items []DetectedItem) DetectionEvent {
	ev := DetectionEvent{FrameIndex: frame.Index, Total: len(items)}
	for _, it := range items {
		ev.Detections = append(ev.Detections, DetectionLogEntry{
			Label: it.Label,
			Box:   it.Box,
			Area:  it.Box.Area(),
		})
	}
	return ev
}

// Package orchestrator provides E2E run orchestration.
// It coordinates: frame discovery → header ingestion → photometry → persistence
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"photometry-lab/internal/config"
	"photometry-lab/internal/domain"
	"photometry-lab/internal/fits"
	"photometry-lab/internal/idhash"
	"photometry-lab/internal/iraf"
	"photometry-lab/internal/observability"
	"photometry-lab/internal/photometry"
	"photometry-lab/internal/storage"
)

// Orchestrator coordinates a full run over a directory of FITS frames.
// Flow: discover frames → ingest headers → photometer each frame against
// the reference star list → persist measurements and light curve points.
type Orchestrator struct {
	// Stores
	imageStore       storage.ImageStore
	measurementStore storage.MeasurementStore
	lightCurveStore  storage.LightCurveStore

	// Tools
	detector iraf.SourceDetector
	pipeline *photometry.Pipeline

	// Config
	cfg     config.Configuration
	metrics *observability.Metrics

	// Options
	verbose bool
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	ImageStore       storage.ImageStore
	MeasurementStore storage.MeasurementStore
	LightCurveStore  storage.LightCurveStore

	// Detector finds the reference star list on the reference frame.
	Detector iraf.SourceDetector
	// Pipeline photometers one frame.
	Pipeline *photometry.Pipeline

	Config  config.Configuration
	Metrics *observability.Metrics

	Verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}
	return &Orchestrator{
		imageStore:       opts.ImageStore,
		measurementStore: opts.MeasurementStore,
		lightCurveStore:  opts.LightCurveStore,
		detector:         opts.Detector,
		pipeline:         opts.Pipeline,
		cfg:              opts.Config,
		metrics:          metrics,
		verbose:          opts.Verbose,
	}
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	ImagesProcessed int
	ImagesSkipped   int // duplicates of already-stored frames
	StarsMeasured   int
	Saturated       int
	Undefined       int
	Errors          []string // frames whose headers could not be read
}

// Run executes the full pipeline over every FITS frame under root.
// Phases:
//  1. Discover frames
//  2. Detect sources on the reference frame (lexically first)
//  3. Photometer each frame and persist the results
func (o *Orchestrator) Run(ctx context.Context, root string) (*RunResult, error) {
	result := &RunResult{}

	// Phase 1: Discover frames
	o.log("Phase 1: Discovering frames under %s...", root)
	paths, err := fits.Find(root)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (discover frames) failed: %w", err)
	}
	o.log("  Found %d frames", len(paths))

	if len(paths) == 0 {
		return result, nil
	}

	// Phase 2: Reference star list
	o.log("Phase 2: Detecting sources on reference frame %s...", paths[0])
	refImageID, refCoords, err := o.detectReference(ctx, paths[0])
	if err != nil {
		return nil, fmt.Errorf("phase 2 (source detection) failed: %w", err)
	}
	o.log("  Detected %d sources", len(refCoords))

	starIDs := make([]string, len(refCoords))
	for i, c := range refCoords {
		starIDs[i] = idhash.ComputeStarID(refImageID, c.X, c.Y)
	}

	// Phase 3: Photometry
	o.log("Phase 3: Photometering %d frames...", len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		skipped, err := o.processFrame(ctx, path, refCoords, starIDs, result)
		if err != nil {
			return nil, fmt.Errorf("photometer %s: %w", path, err)
		}
		if skipped {
			result.ImagesSkipped++
		} else {
			result.ImagesProcessed++
		}
	}

	o.log("Run completed: %d frames, %d skipped, %d stars measured (%d saturated, %d undefined)",
		result.ImagesProcessed, result.ImagesSkipped, result.StarsMeasured,
		result.Saturated, result.Undefined)

	return result, nil
}

// detectReference opens the reference frame and detects the star list
// all other frames are measured against. Star identities are anchored
// to the reference frame's image ID.
func (o *Orchestrator) detectReference(ctx context.Context, path string) (string, []domain.Coordinate, error) {
	img, err := fits.Open(path)
	if err != nil {
		return "", nil, err
	}
	rec, err := img.Record(o.cfg.Keywords)
	if err != nil {
		return "", nil, err
	}

	coords, err := o.detector.Detect(ctx, path, o.cfg.Photometry.Margin)
	if err != nil {
		return "", nil, err
	}
	if len(coords) == 0 {
		return "", nil, fmt.Errorf("no sources detected on %s", path)
	}
	return rec.ImageID, coords, nil
}

// processFrame photometers one frame and persists it. The image record
// is written only after the frame's measurements are stored, so its
// presence means the frame has been fully photometered. A frame whose
// image ID is already stored is skipped; measurements are never
// rewritten.
func (o *Orchestrator) processFrame(ctx context.Context, path string, refCoords []domain.Coordinate, starIDs []string, result *RunResult) (skipped bool, err error) {
	img, err := fits.Open(path)
	if err != nil {
		// A frame with an unreadable header does not abort the night.
		result.Errors = append(result.Errors, fmt.Sprintf("open %s: %v", path, err))
		o.metrics.RecordFailure("header")
		return true, nil
	}
	rec, err := img.Record(o.cfg.Keywords)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("ingest %s: %v", path, err))
		o.metrics.RecordFailure("header")
		return true, nil
	}

	switch _, err := o.imageStore.GetByID(ctx, rec.ImageID); {
	case err == nil:
		o.log("  Skipping %s: already photometered", path)
		return true, nil
	case !errors.Is(err, storage.ErrNotFound):
		o.metrics.RecordFailure("storage")
		return false, err
	}

	dx, dy := o.cfg.Offset(filepath.Base(path))
	batch, err := o.pipeline.Run(ctx, photometry.Input{
		Image:        path,
		Uncalibrated: img.UncalibratedPath(o.cfg.Keywords),
		RefCoords:    refCoords,
		DX:           dx,
		DY:           dy,
		Params:       o.cfg.Params(),
	})
	if err != nil {
		o.metrics.RecordFailure("photometry")
		return false, err
	}

	measurements, points, err := buildRecords(rec, batch, starIDs)
	if err != nil {
		o.metrics.RecordFailure("photometry")
		return false, err
	}

	if err := o.measurementStore.InsertBulk(ctx, measurements); err != nil {
		o.metrics.RecordFailure("storage")
		return false, err
	}
	if err := o.lightCurveStore.InsertBulk(ctx, points); err != nil {
		o.metrics.RecordFailure("storage")
		return false, err
	}
	if err := o.imageStore.Insert(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// A concurrent run committed this frame first.
			o.log("  Skipping %s: already photometered", path)
			return true, nil
		}
		o.metrics.RecordFailure("storage")
		return false, err
	}

	var okCount, undefined, saturated int
	for _, m := range measurements {
		switch m.Status {
		case domain.MagnitudeSaturated:
			saturated++
		case domain.MagnitudeUndefined:
			undefined++
		default:
			okCount++
		}
	}
	result.StarsMeasured += len(measurements)
	result.Saturated += saturated
	result.Undefined += undefined
	o.metrics.RecordImage(okCount, undefined, saturated)

	o.log("  %s: %d stars (%d saturated, %d undefined)", path, len(measurements), saturated, undefined)
	return false, nil
}

// buildRecords converts a photometry batch into persistence records.
// The batch preserves the reference star order, so entry i belongs to
// starIDs[i]. Magnitudes are stored only for ordinary measurements; the
// undefined and saturated sentinels persist as NULL.
func buildRecords(rec *domain.ImageRecord, batch photometry.Batch, starIDs []string) ([]*domain.MeasurementRecord, []*domain.LightCurvePoint, error) {
	if len(batch) != len(starIDs) {
		return nil, nil, fmt.Errorf("batch holds %d stars, reference list %d", len(batch), len(starIDs))
	}

	now := time.Now().Unix()
	measurements := make([]*domain.MeasurementRecord, 0, len(batch))
	points := make([]*domain.LightCurvePoint, 0, len(batch))

	for i := range batch {
		sp := &batch[i]
		snr, err := sp.SNR(rec.Gain)
		if err != nil {
			return nil, nil, fmt.Errorf("star %s on %s: %w", starIDs[i], rec.Path, err)
		}

		var magnitude *float64
		if sp.Magnitude.Status == domain.MagnitudeOK {
			v := sp.Magnitude.Value
			magnitude = &v
		}

		measurements = append(measurements, &domain.MeasurementRecord{
			ImageID:   rec.ImageID,
			StarID:    starIDs[i],
			X:         sp.Star.X,
			Y:         sp.Star.Y,
			Status:    sp.Magnitude.Status,
			Magnitude: magnitude,
			SkySum:    sp.SkySum,
			Flux:      sp.Flux,
			SkyStdDev: sp.SkyStdDev,
			SNR:       snr,
			CreatedAt: now,
		})
		points = append(points, &domain.LightCurvePoint{
			StarID:     starIDs[i],
			ObservedAt: rec.ObservedAt,
			ImageID:    rec.ImageID,
			Magnitude:  magnitude,
			SNR:        snr,
		})
	}
	return measurements, points, nil
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[orchestrator] "+format, args...)
	}
}

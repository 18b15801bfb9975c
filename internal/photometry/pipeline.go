package photometry

import (
	"context"
	"fmt"
	"log"
	"os"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/events"
	"photometry-lab/internal/iraf"
)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// Saturation is the detector saturation level in ADU.
	Saturation float64
	// Margin excludes detected sources this close to an image edge, in pixels.
	Margin int
	// Reporter receives progress and warning events.
	Reporter events.Reporter
	// Logger receives per-stage log lines.
	Logger *log.Logger
}

// DefaultSaturation is the saturation level assumed when none is configured.
const DefaultSaturation = 50000

// DefaultMargin is the edge margin assumed when none is configured.
const DefaultMargin = 250

// Pipeline photometers one image end to end: obtain reference
// coordinates, apply the registration offset, measure, classify
// saturation against the uncalibrated original.
type Pipeline struct {
	tools iraf.Toolchain
	opts  PipelineOptions

	measurer   *Measurer
	classifier *Classifier
}

// NewPipeline creates a pipeline over the given toolchain, applying
// defaults for unset options.
func NewPipeline(tools iraf.Toolchain, opts PipelineOptions) *Pipeline {
	if opts.Saturation <= 0 {
		opts.Saturation = DefaultSaturation
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}
	if opts.Reporter == nil {
		opts.Reporter = events.NopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[photometry] ", log.LstdFlags)
	}

	measurer := NewMeasurer(tools)
	return &Pipeline{
		tools:      tools,
		opts:       opts,
		measurer:   measurer,
		classifier: NewClassifier(measurer, tools, opts.Reporter),
	}
}

// Input describes one image pair to photometer.
type Input struct {
	// Image is the calibrated image measurements are taken on.
	Image string
	// Uncalibrated is the raw original used for saturation evaluation.
	// Must exist on disk.
	Uncalibrated string
	// RefCoords is the reference star list. When empty, sources are
	// detected on RefImage instead.
	RefCoords []domain.Coordinate
	// RefImage is the image to detect sources on when RefCoords is empty.
	RefImage string
	// DX, DY is the registration offset from the reference frame to Image.
	DX, DY float64
	// Params are the aperture photometry parameters.
	Params domain.ApertureParams
}

// Run photometers one image. Any stage failure aborts the whole run;
// there are no partial results.
func (p *Pipeline) Run(ctx context.Context, in Input) (Batch, error) {
	coords := in.RefCoords
	if len(coords) == 0 {
		detected, err := p.tools.Detect(ctx, in.RefImage, p.opts.Margin)
		if err != nil {
			return nil, fmt.Errorf("source detection on %s: %w", in.RefImage, err)
		}
		coords = detected
		p.opts.Logger.Printf("detected %d sources on %s (margin %d)", len(coords), in.RefImage, p.opts.Margin)
	}

	shifted := Shift(coords, in.DX, in.DY)

	batch, err := p.measurer.Measure(ctx, in.Image, shifted, in.Params)
	if err != nil {
		return nil, err
	}
	p.opts.Reporter.Report(events.Event{
		Level:   events.LevelInfo,
		Stage:   "photometry",
		Image:   in.Image,
		Message: fmt.Sprintf("measured %d stars", len(batch)),
	})

	if _, err := os.Stat(in.Uncalibrated); err != nil {
		return nil, fmt.Errorf("%w: uncalibrated image %s", ErrMissingImage, in.Uncalibrated)
	}

	batch, err = p.classifier.Classify(ctx, batch, in.Uncalibrated, p.opts.Saturation, in.Params)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

package photometry

import (
	"context"
	"fmt"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/events"
	"photometry-lab/internal/iraf"
)

// Classifier marks saturated stars in a photometered batch.
//
// A binary mask is built by thresholding a source image at the detector
// saturation level, and the batch's coordinates are photometered again
// against that mask. Any star whose aperture catches a positive mask
// flux sits on saturated pixels; its magnitude is overwritten with the
// saturated sentinel. Everything else, undefined magnitudes included,
// is left untouched.
type Classifier struct {
	measurer    *Measurer
	thresholder iraf.PixelThresholder
	reporter    events.Reporter
}

// NewClassifier creates a classifier. A nil reporter discards events.
func NewClassifier(measurer *Measurer, thresholder iraf.PixelThresholder, reporter events.Reporter) *Classifier {
	if reporter == nil {
		reporter = events.NopReporter{}
	}
	return &Classifier{measurer: measurer, thresholder: thresholder, reporter: reporter}
}

// Classify overwrites the magnitudes of saturated stars in batch and
// returns it. The mask image may differ from the image the batch was
// measured on; calibration can pull a saturated raw pixel back under
// the threshold, so callers usually pass the uncalibrated original.
// The mask is removed before Classify returns, on every path.
func (c *Classifier) Classify(ctx context.Context, batch Batch, maskSource string, thresholdADU float64, params domain.ApertureParams) (Batch, error) {
	mask, cleanup, err := c.thresholder.Threshold(ctx, maskSource, thresholdADU)
	if err != nil {
		return nil, fmt.Errorf("thresholding %s at %g ADU: %w", maskSource, thresholdADU, err)
	}
	defer cleanup()

	maskBatch, err := c.measurer.Measure(ctx, mask, batch.Coordinates(), params)
	if err != nil {
		return nil, fmt.Errorf("mask photometry for %s: %w", maskSource, err)
	}

	saturated := 0
	for i := range batch {
		if maskBatch[i].Flux > 0 {
			batch[i].Magnitude = domain.SaturatedMagnitude()
			saturated++
		}
	}

	if saturated > 0 {
		c.reporter.Report(events.Event{
			Level:   events.LevelWarning,
			Stage:   "saturation",
			Image:   maskSource,
			Message: fmt.Sprintf("%d of %d stars saturated above %g ADU", saturated, len(batch), thresholdADU),
		})
	}
	return batch, nil
}

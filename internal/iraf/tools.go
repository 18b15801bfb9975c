// Package iraf wraps the external IRAF-style command line tools the
// pipeline shells out to for pixel-level work: aperture photometry,
// source detection, pixel thresholding and region statistics.
package iraf

import (
	"context"

	"photometry-lab/internal/domain"
)

// Photometer runs aperture photometry on a FITS image.
type Photometer interface {
	// Measure performs photometry at each coordinate in a single tool
	// invocation and returns the raw per-star text records, one line per
	// star, in the order the coordinates were given. Each record holds
	// six whitespace-separated fields:
	//
	//   xcenter ycenter magnitude sky_sum flux sky_stddev
	//
	// where magnitude and sky_stddev may be the literal INDEF when the
	// tool could not compute them. Callers parse and validate records;
	// Measure only guarantees the invocation itself succeeded.
	Measure(ctx context.Context, image string, coords []domain.Coordinate, params domain.ApertureParams) ([]string, error)
}

// SourceDetector finds stars on a FITS image.
type SourceDetector interface {
	// Detect returns the pixel coordinates of the sources found on the
	// image, excluding any closer than margin pixels to an edge.
	Detect(ctx context.Context, image string, margin int) ([]domain.Coordinate, error)
}

// PixelThresholder builds binary masks from a FITS image.
type PixelThresholder interface {
	// Threshold writes a same-sized image whose pixels are one where the
	// source image exceeds level ADU and zero elsewhere. It returns the
	// path of the mask and a cleanup function that removes it; cleanup
	// must be called exactly once, on every exit path.
	Threshold(ctx context.Context, image string, level float64) (mask string, cleanup func() error, err error)
}

// RegionStats computes pixel statistics over a section of a FITS image.
type RegionStats interface {
	// Stats returns the statistics of the pixels inside region.
	Stats(ctx context.Context, image string, region domain.Region) (domain.RegionStats, error)
}

// Toolchain bundles the four tools a full pipeline run needs.
type Toolchain interface {
	Photometer
	SourceDetector
	PixelThresholder
	RegionStats
}

// Package photometry measures star brightness on FITS images by
// orchestrating the external aperture photometry tool: batching
// coordinates, parsing and validating its records, flagging saturated
// stars and applying registration offsets.
package photometry

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/iraf"
)

// centerTolerance is the maximum per-axis distance, in pixels, between
// a requested coordinate and the center the tool echoes back. Anything
// larger means the records no longer line up with the input list.
const centerTolerance = 0.001

// indefField is the literal the tool prints for values it could not compute.
const indefField = "INDEF"

// Batch is an ordered set of per-star measurements for one image.
// Each entry carries its own coordinate, so results can never drift out
// of alignment with the stars they belong to.
type Batch []domain.StarPhotometry

// Coordinates returns the stars of the batch, in order.
func (b Batch) Coordinates() []domain.Coordinate {
	coords := make([]domain.Coordinate, len(b))
	for i, r := range b {
		coords[i] = r.Star
	}
	return coords
}

// Measurer runs batched aperture photometry.
type Measurer struct {
	phot iraf.Photometer
}

// NewMeasurer creates a measurer over the given photometry tool.
func NewMeasurer(phot iraf.Photometer) *Measurer {
	return &Measurer{phot: phot}
}

// Measure photometers every coordinate on the image in one tool
// invocation. The returned batch has exactly one entry per coordinate,
// in input order; a count or center mismatch is fatal and reported with
// the image and record index.
func (m *Measurer) Measure(ctx context.Context, image string, coords []domain.Coordinate, params domain.ApertureParams) (Batch, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: image %s", ErrNoCoordinates, image)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	lines, err := m.phot.Measure(ctx, image, coords, params)
	if err != nil {
		return nil, fmt.Errorf("photometry on %s: %w", image, err)
	}
	if len(lines) != len(coords) {
		return nil, fmt.Errorf("%w: image %s: %d coordinates, %d records",
			ErrRecordCountMismatch, image, len(coords), len(lines))
	}

	batch := make(Batch, 0, len(coords))
	for i, line := range lines {
		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("image %s, record %d: %w", image, i, err)
		}
		if math.Abs(rec.x-coords[i].X) > centerTolerance || math.Abs(rec.y-coords[i].Y) > centerTolerance {
			return nil, fmt.Errorf("%w: image %s, record %d: asked (%.3f, %.3f), got (%.3f, %.3f)",
				ErrCenterMismatch, image, i, coords[i].X, coords[i].Y, rec.x, rec.y)
		}

		mag := domain.UndefinedMagnitude()
		if rec.mag != nil {
			mag = domain.MagnitudeOf(*rec.mag)
		}
		batch = append(batch, domain.StarPhotometry{
			Star:      coords[i],
			Magnitude: mag,
			SkySum:    rec.sum,
			Flux:      rec.flux,
			SkyStdDev: rec.stddev,
		})
	}
	return batch, nil
}

// record is one parsed photometry output line.
type record struct {
	x, y   float64
	mag    *float64 // nil when INDEF
	sum    float64
	flux   float64
	stddev *float64 // nil when INDEF
}

// parseRecord splits a six-field photometry record:
//
//	xcenter ycenter magnitude sky_sum flux sky_stddev
//
// where magnitude and sky_stddev may be INDEF.
func parseRecord(line string) (record, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return record{}, fmt.Errorf("%w: expected 6 fields, got %d in %q", ErrMalformedRecord, len(fields), line)
	}

	var rec record
	var err error
	if rec.x, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return record{}, fmt.Errorf("%w: xcenter %q", ErrMalformedRecord, fields[0])
	}
	if rec.y, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return record{}, fmt.Errorf("%w: ycenter %q", ErrMalformedRecord, fields[1])
	}
	if rec.mag, err = parseOptional(fields[2]); err != nil {
		return record{}, fmt.Errorf("%w: magnitude %q", ErrMalformedRecord, fields[2])
	}
	if rec.sum, err = strconv.ParseFloat(fields[3], 64); err != nil {
		return record{}, fmt.Errorf("%w: sky sum %q", ErrMalformedRecord, fields[3])
	}
	if rec.flux, err = strconv.ParseFloat(fields[4], 64); err != nil {
		return record{}, fmt.Errorf("%w: flux %q", ErrMalformedRecord, fields[4])
	}
	if rec.stddev, err = parseOptional(fields[5]); err != nil {
		return record{}, fmt.Errorf("%w: sky stddev %q", ErrMalformedRecord, fields[5])
	}
	return rec, nil
}

func parseOptional(field string) (*float64, error) {
	if field == indefField {
		return nil, nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

package photometry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photometry-lab/internal/domain"
)

// fakePhotometer returns scripted output lines keyed by image path.
type fakePhotometer struct {
	lines map[string][]string
	err   error
}

func (f *fakePhotometer) Measure(_ context.Context, image string, _ []domain.Coordinate, _ domain.ApertureParams) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lines[image], nil
}

func testParams() domain.ApertureParams {
	return domain.ApertureParams{Annulus: 10, Dannulus: 8, Aperture: 5, ExpTimeK: "EXPTIME"}
}

func TestMeasure_PreservesOrderAndCardinality(t *testing.T) {
	coords := []domain.Coordinate{{X: 12.0, Y: 9.0}, {X: 52.0, Y: 49.0}, {X: 80.5, Y: 3.25}}
	phot := &fakePhotometer{lines: map[string][]string{
		"img.fits": {
			"12.000 9.000 14.125 1000 500 2.5",
			"52.000 49.000 15.750 1200 300 3.1",
			"80.500 3.250 INDEF -20 -5 INDEF",
		},
	}}

	batch, err := NewMeasurer(phot).Measure(context.Background(), "img.fits", coords, testParams())
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i := range coords {
		assert.Equal(t, coords[i], batch[i].Star, "result %d must align with its coordinate", i)
	}

	assert.Equal(t, domain.MagnitudeOf(14.125), batch[0].Magnitude)
	assert.Equal(t, 1000.0, batch[0].SkySum)
	assert.Equal(t, 500.0, batch[0].Flux)
	require.NotNil(t, batch[0].SkyStdDev)
	assert.Equal(t, 2.5, *batch[0].SkyStdDev)

	// Star off the noisy margin: undefined magnitude, negative sums.
	assert.True(t, batch[2].Magnitude.IsUndefined())
	assert.Equal(t, -20.0, batch[2].SkySum)
	assert.Nil(t, batch[2].SkyStdDev)
}

func TestMeasure_EmptyCoordinates(t *testing.T) {
	_, err := NewMeasurer(&fakePhotometer{}).Measure(context.Background(), "img.fits", nil, testParams())
	assert.ErrorIs(t, err, ErrNoCoordinates)
}

func TestMeasure_RecordCountMismatch(t *testing.T) {
	coords := []domain.Coordinate{{X: 10, Y: 10}, {X: 20, Y: 20}}
	phot := &fakePhotometer{lines: map[string][]string{
		"img.fits": {"10.000 10.000 14.0 100 50 1.0"},
	}}

	_, err := NewMeasurer(phot).Measure(context.Background(), "img.fits", coords, testParams())
	require.ErrorIs(t, err, ErrRecordCountMismatch)
	assert.Contains(t, err.Error(), "img.fits")
}

func TestMeasure_CenterMismatch(t *testing.T) {
	coords := []domain.Coordinate{{X: 10, Y: 10}, {X: 20, Y: 20}}
	phot := &fakePhotometer{lines: map[string][]string{
		"img.fits": {
			"10.000 10.000 14.0 100 50 1.0",
			"20.010 20.000 15.0 100 50 1.0", // 0.01 px off, beyond tolerance
		},
	}}

	_, err := NewMeasurer(phot).Measure(context.Background(), "img.fits", coords, testParams())
	require.ErrorIs(t, err, ErrCenterMismatch)
	assert.Contains(t, err.Error(), "record 1")
	assert.Contains(t, err.Error(), "img.fits")
}

func TestMeasure_CenterWithinTolerance(t *testing.T) {
	// Sub-milli-pixel rounding in the echoed centers is not a mismatch.
	coords := []domain.Coordinate{{X: 10.0005, Y: 9.9995}}
	phot := &fakePhotometer{lines: map[string][]string{
		"img.fits": {"10.000 10.000 14.0 100 50 1.0"},
	}}

	batch, err := NewMeasurer(phot).Measure(context.Background(), "img.fits", coords, testParams())
	require.NoError(t, err)
	assert.Equal(t, coords[0], batch[0].Star)
}

func TestMeasure_MalformedRecord(t *testing.T) {
	coords := []domain.Coordinate{{X: 10, Y: 10}}
	phot := &fakePhotometer{lines: map[string][]string{
		"img.fits": {"10.000 10.000 abc 100 50 1.0"},
	}}

	_, err := NewMeasurer(phot).Measure(context.Background(), "img.fits", coords, testParams())
	require.ErrorIs(t, err, ErrMalformedRecord)
	assert.Contains(t, err.Error(), "record 0")
}

func TestMeasure_InvalidParams(t *testing.T) {
	coords := []domain.Coordinate{{X: 10, Y: 10}}
	params := testParams()
	params.Aperture = -1

	_, err := NewMeasurer(&fakePhotometer{}).Measure(context.Background(), "img.fits", coords, params)
	assert.Error(t, err)
}

func TestShift_DoesNotMutateInput(t *testing.T) {
	coords := []domain.Coordinate{{X: 10.0, Y: 10.0}, {X: 50.0, Y: 50.0}}

	shifted := Shift(coords, 2.0, -1.0)
	assert.Equal(t, []domain.Coordinate{{X: 12.0, Y: 9.0}, {X: 52.0, Y: 49.0}}, shifted)
	assert.Equal(t, []domain.Coordinate{{X: 10.0, Y: 10.0}, {X: 50.0, Y: 50.0}}, coords)

	// The zero offset still returns a fresh list.
	same := Shift(coords, 0, 0)
	assert.Equal(t, coords, same)
	same[0].X = 999
	assert.Equal(t, 10.0, coords[0].X)
}

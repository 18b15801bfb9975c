package photometry

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photometry-lab/internal/domain"
)

// fakeThresholder hands out a fixed mask name and counts cleanups.
type fakeThresholder struct {
	mask     string
	err      error
	cleanups int
}

func (f *fakeThresholder) Threshold(_ context.Context, _ string, _ float64) (string, func() error, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.mask, func() error { f.cleanups++; return nil }, nil
}

func TestClassify_MarksOnlyPositiveMaskFlux(t *testing.T) {
	batch := Batch{
		{Star: domain.Coordinate{X: 12, Y: 9}, Magnitude: domain.MagnitudeOf(14.125), Flux: 500},
		{Star: domain.Coordinate{X: 52, Y: 49}, Magnitude: domain.MagnitudeOf(15.75), Flux: 300},
	}

	phot := &fakePhotometer{lines: map[string][]string{
		"raw.fits.mask": {
			"12.000 9.000 INDEF 0 0 INDEF",
			"52.000 49.000 INDEF 0 3.2 INDEF",
		},
	}}
	thresholder := &fakeThresholder{mask: "raw.fits.mask"}
	classifier := NewClassifier(NewMeasurer(phot), thresholder, nil)

	out, err := classifier.Classify(context.Background(), batch, "raw.fits", 50000, testParams())
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, domain.MagnitudeOf(14.125), out[0].Magnitude, "zero mask flux must leave the magnitude alone")
	assert.True(t, out[1].Magnitude.IsSaturated())
	assert.True(t, math.IsInf(out[1].Magnitude.Value, 1))
	assert.Equal(t, 1, thresholder.cleanups)
}

func TestClassify_UndefinedStaysUndefined(t *testing.T) {
	batch := Batch{
		{Star: domain.Coordinate{X: 5, Y: 5}, Magnitude: domain.UndefinedMagnitude()},
	}
	phot := &fakePhotometer{lines: map[string][]string{
		"raw.fits.mask": {"5.000 5.000 INDEF 0 0 INDEF"},
	}}
	classifier := NewClassifier(NewMeasurer(phot), &fakeThresholder{mask: "raw.fits.mask"}, nil)

	out, err := classifier.Classify(context.Background(), batch, "raw.fits", 50000, testParams())
	require.NoError(t, err)
	assert.True(t, out[0].Magnitude.IsUndefined())
}

func TestClassify_CleansUpMaskOnMeasureFailure(t *testing.T) {
	batch := Batch{{Star: domain.Coordinate{X: 5, Y: 5}}}
	phot := &fakePhotometer{err: errors.New("tool crashed")}
	thresholder := &fakeThresholder{mask: "raw.fits.mask"}
	classifier := NewClassifier(NewMeasurer(phot), thresholder, nil)

	_, err := classifier.Classify(context.Background(), batch, "raw.fits", 50000, testParams())
	require.Error(t, err)
	assert.Equal(t, 1, thresholder.cleanups)
}

func TestClassify_ThresholdFailure(t *testing.T) {
	classifier := NewClassifier(NewMeasurer(&fakePhotometer{}), &fakeThresholder{err: errors.New("no such image")}, nil)

	_, err := classifier.Classify(context.Background(), Batch{{}}, "raw.fits", 50000, testParams())
	assert.Error(t, err)
}

package astrometry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSolver struct {
	head     string
	err      error
	cleanups int
}

func (f *fakeSolver) Solve(context.Context, string) (string, func() error, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.head, func() error { f.cleanups++; return nil }, nil
}

type fakeResampler struct {
	out      string
	err      error
	gotImage string
	gotHead  string
}

func (f *fakeResampler) Resample(_ context.Context, image, head string) (string, error) {
	f.gotImage, f.gotHead = image, head
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func TestAlign_ChainsSolveAndResample(t *testing.T) {
	solver := &fakeSolver{head: "sol.head"}
	resampler := &fakeResampler{out: "aligned.fits"}
	a := NewAligner(solver, resampler, nil)

	out, err := a.Align(context.Background(), "img.fits")
	require.NoError(t, err)

	assert.Equal(t, "aligned.fits", out)
	assert.Equal(t, "img.fits", resampler.gotImage)
	assert.Equal(t, "sol.head", resampler.gotHead)
	assert.Equal(t, 1, solver.cleanups, "solution header must be removed")
}

func TestAlign_SolveFailure(t *testing.T) {
	a := NewAligner(&fakeSolver{err: errors.New("no solution")}, &fakeResampler{}, nil)

	_, err := a.Align(context.Background(), "img.fits")
	assert.ErrorIs(t, err, ErrSolveFailed)
}

func TestAlign_ResampleFailureStillCleansUp(t *testing.T) {
	solver := &fakeSolver{head: "sol.head"}
	a := NewAligner(solver, &fakeResampler{err: errors.New("swarp died")}, nil)

	_, err := a.Align(context.Background(), "img.fits")
	require.ErrorIs(t, err, ErrResampleFailed)
	assert.Equal(t, 1, solver.cleanups)
}

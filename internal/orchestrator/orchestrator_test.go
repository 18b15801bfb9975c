package orchestrator

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photometry-lab/internal/config"
	"photometry-lab/internal/domain"
	"photometry-lab/internal/idhash"
	"photometry-lab/internal/iraf/stub"
	"photometry-lab/internal/photometry"
	"photometry-lab/internal/storage/memory"
)

// writeFrame creates a header-only FITS file the orchestrator can ingest.
func writeFrame(t *testing.T, path, dateObs string) {
	t.Helper()

	w, err := os.Create(path)
	require.NoError(t, err)
	defer w.Close()

	f, err := fitsio.Create(w)
	require.NoError(t, err)
	defer f.Close()

	phdu, err := fitsio.NewPrimaryHDU(nil)
	require.NoError(t, err)
	require.NoError(t, phdu.Header().Append(
		fitsio.Card{Name: "OBJECT", Value: "IC 5146"},
		fitsio.Card{Name: "FILTER", Value: "Johnson V"},
		fitsio.Card{Name: "DATE-OBS", Value: dateObs},
		fitsio.Card{Name: "EXPTIME", Value: 120.0},
		fitsio.Card{Name: "GAIN", Value: 2.0},
		fitsio.Card{Name: "AIRMASS", Value: 1.2},
	))
	require.NoError(t, f.Write(phdu))
}

func testConfig() config.Configuration {
	cfg := config.NewConfiguration()
	cfg.Photometry.Aperture = 11
	cfg.Photometry.Annulus = 13
	cfg.Photometry.Dannulus = 8
	cfg.Photometry.Margin = 100
	cfg.Photometry.Saturation = 50000
	return cfg
}

// Two frames of the same field. The second is shifted by (2, -1) and
// carries a star driven into saturation.
func TestOrchestrator_Run(t *testing.T) {
	dir := t.TempDir()
	frame1 := filepath.Join(dir, "ferM_0001.fits")
	frame2 := filepath.Join(dir, "ferM_0002.fits")
	writeFrame(t, frame1, "2012-05-30T03:21:52")
	writeFrame(t, frame2, "2012-05-30T03:26:52")

	tools := stub.NewToolchain(map[string]*stub.Frame{
		frame1: {Width: 1000, Height: 1000, Stars: []stub.Star{
			{X: 500, Y: 500, Mag: 14.5, Sum: 10000, Flux: 5000, StdDev: 4.5, Peak: 30000},
			{X: 600, Y: 400, Mag: 12.1, Sum: 40000, Flux: 30000, StdDev: 5.1, Peak: 48000},
		}},
		frame2: {Width: 1000, Height: 1000, Stars: []stub.Star{
			{X: 502, Y: 499, Mag: 14.52, Sum: 10100, Flux: 5050, StdDev: 4.4, Peak: 30200},
			{X: 602, Y: 399, Mag: math.NaN(), Sum: 90000, Flux: 80000, StdDev: 6.0, Peak: 61234},
		}},
	})

	cfg := testConfig()
	cfg.Alignment = map[string][]float64{
		"ferM_0002.fits": {2, -1},
	}

	imageStore := memory.NewImageStore()
	measurementStore := memory.NewMeasurementStore()
	lightCurveStore := memory.NewLightCurveStore()

	orch := New(Options{
		ImageStore:       imageStore,
		MeasurementStore: measurementStore,
		LightCurveStore:  lightCurveStore,
		Detector:         tools,
		Pipeline: photometry.NewPipeline(tools, photometry.PipelineOptions{
			Saturation: cfg.Photometry.Saturation,
			Margin:     cfg.Photometry.Margin,
		}),
		Config: cfg,
	})

	ctx := context.Background()
	result, err := orch.Run(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, 2, result.ImagesProcessed)
	assert.Equal(t, 0, result.ImagesSkipped)
	assert.Equal(t, 4, result.StarsMeasured)
	assert.Equal(t, 1, result.Saturated)
	assert.Equal(t, 0, result.Undefined)
	assert.Empty(t, result.Errors)

	images, err := imageStore.GetByObject(ctx, "IC 5146")
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, frame1, images[0].Path)
	assert.Equal(t, images[0].ObservedAt+300, images[1].ObservedAt)

	refID := images[0].ImageID
	starID := idhash.ComputeStarID(refID, 500, 500)

	// The bright star saturates only on the second frame.
	brightID := idhash.ComputeStarID(refID, 600, 400)
	bright, err := measurementStore.GetByStarID(ctx, brightID)
	require.NoError(t, err)
	require.Len(t, bright, 2)
	statuses := map[string]domain.MagnitudeStatus{}
	for _, m := range bright {
		statuses[m.ImageID] = m.Status
	}
	assert.Equal(t, domain.MagnitudeOK, statuses[images[0].ImageID])
	assert.Equal(t, domain.MagnitudeSaturated, statuses[images[1].ImageID])

	curve, err := lightCurveStore.GetByStarID(ctx, starID)
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.Equal(t, images[0].ObservedAt, curve[0].ObservedAt)
	require.NotNil(t, curve[0].Magnitude)
	assert.Equal(t, 14.5, *curve[0].Magnitude)
	require.NotNil(t, curve[1].Magnitude)
	assert.Equal(t, 14.52, *curve[1].Magnitude)
	assert.InDelta(t, 5000*2.0/math.Sqrt(10000*2.0), curve[0].SNR, 1e-9)

	saturated, err := lightCurveStore.GetByStarID(ctx, brightID)
	require.NoError(t, err)
	require.Len(t, saturated, 2)
	assert.Nil(t, saturated[1].Magnitude)
}

func TestOrchestrator_RerunSkipsStoredFrames(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "ferM_0001.fits")
	writeFrame(t, frame, "2012-05-30T03:21:52")

	tools := stub.NewToolchain(map[string]*stub.Frame{
		frame: {Width: 1000, Height: 1000, Stars: []stub.Star{
			{X: 500, Y: 500, Mag: 14.5, Sum: 10000, Flux: 5000, StdDev: 4.5, Peak: 30000},
		}},
	})

	measurementStore := memory.NewMeasurementStore()
	orch := New(Options{
		ImageStore:       memory.NewImageStore(),
		MeasurementStore: measurementStore,
		LightCurveStore:  memory.NewLightCurveStore(),
		Detector:         tools,
		Pipeline:         photometry.NewPipeline(tools, photometry.PipelineOptions{Margin: 100}),
		Config:           testConfig(),
	})

	ctx := context.Background()
	first, err := orch.Run(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ImagesProcessed)

	second, err := orch.Run(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ImagesProcessed)
	assert.Equal(t, 1, second.ImagesSkipped)
	assert.Equal(t, 0, second.StarsMeasured)
}

// A frame whose photometry fails must leave no trace in the stores, so
// the next run over the same directory measures it instead of skipping
// it as already done.
func TestOrchestrator_FailedFrameIsRetriedOnNextRun(t *testing.T) {
	dir := t.TempDir()
	frame1 := filepath.Join(dir, "ferM_0001.fits")
	frame2 := filepath.Join(dir, "ferM_0002.fits")
	writeFrame(t, frame1, "2012-05-30T03:21:52")
	writeFrame(t, frame2, "2012-05-30T03:26:52")

	star := stub.Star{X: 500, Y: 500, Mag: 14.5, Sum: 10000, Flux: 5000, StdDev: 4.5, Peak: 30000}

	// The first toolchain does not know the second frame, so its
	// photometry stage faults and the run aborts.
	broken := stub.NewToolchain(map[string]*stub.Frame{
		frame1: {Width: 1000, Height: 1000, Stars: []stub.Star{star}},
	})

	imageStore := memory.NewImageStore()
	measurementStore := memory.NewMeasurementStore()
	lightCurveStore := memory.NewLightCurveStore()

	newOrch := func(tools *stub.Toolchain) *Orchestrator {
		return New(Options{
			ImageStore:       imageStore,
			MeasurementStore: measurementStore,
			LightCurveStore:  lightCurveStore,
			Detector:         tools,
			Pipeline:         photometry.NewPipeline(tools, photometry.PipelineOptions{Margin: 100}),
			Config:           testConfig(),
		})
	}

	ctx := context.Background()
	_, err := newOrch(broken).Run(ctx, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ferM_0002.fits")

	// Only the completed frame was committed.
	images, err := imageStore.GetByObject(ctx, "IC 5146")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, frame1, images[0].Path)

	healthy := stub.NewToolchain(map[string]*stub.Frame{
		frame1: {Width: 1000, Height: 1000, Stars: []stub.Star{star}},
		frame2: {Width: 1000, Height: 1000, Stars: []stub.Star{star}},
	})

	result, err := newOrch(healthy).Run(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImagesProcessed)
	assert.Equal(t, 1, result.ImagesSkipped)
	assert.Equal(t, 1, result.StarsMeasured)

	images, err = imageStore.GetByObject(ctx, "IC 5146")
	require.NoError(t, err)
	assert.Len(t, images, 2)
}

func TestOrchestrator_UnreadableFrameIsReported(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "ferM_0001.fits")
	writeFrame(t, frame, "2012-05-30T03:21:52")

	// Lexically after the reference frame, not a FITS file at all.
	garbage := filepath.Join(dir, "ferM_0002.fits")
	require.NoError(t, os.WriteFile(garbage, []byte("not a FITS file"), 0o644))

	tools := stub.NewToolchain(map[string]*stub.Frame{
		frame: {Width: 1000, Height: 1000, Stars: []stub.Star{
			{X: 500, Y: 500, Mag: 14.5, Sum: 10000, Flux: 5000, StdDev: 4.5, Peak: 30000},
		}},
	})

	orch := New(Options{
		ImageStore:       memory.NewImageStore(),
		MeasurementStore: memory.NewMeasurementStore(),
		LightCurveStore:  memory.NewLightCurveStore(),
		Detector:         tools,
		Pipeline:         photometry.NewPipeline(tools, photometry.PipelineOptions{Margin: 100}),
		Config:           testConfig(),
	})

	result, err := orch.Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImagesProcessed)
	assert.Equal(t, 1, result.ImagesSkipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ferM_0002.fits")
}

func TestOrchestrator_EmptyDirectory(t *testing.T) {
	orch := New(Options{Config: testConfig()})
	result, err := orch.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ImagesProcessed)
}

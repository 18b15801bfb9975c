// Package stub provides an in-memory Toolchain for testing pipelines
// without the external binaries or real FITS files.
package stub

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/iraf"
)

// matchRadius is how close a requested coordinate must be to a synthetic
// star for the stub to report that star's measurement.
const matchRadius = 0.5

// Star is a synthetic source placed on a Frame.
type Star struct {
	X, Y   float64
	Mag    float64 // instrumental magnitude; NaN renders as INDEF
	Sum    float64 // sky sum inside the annulus
	Flux   float64
	StdDev float64 // sky standard deviation; NaN renders as INDEF
	Peak   float64 // brightest pixel, ADU
}

// Frame is an in-memory stand-in for a FITS image on disk.
type Frame struct {
	Width, Height int
	Stars         []Star
	Pixels        []float64 // row-major, Width*Height; optional
}

// NewUniformFrame creates a frame whose every pixel holds value.
func NewUniformFrame(width, height int, value float64) *Frame {
	pixels := make([]float64, width*height)
	for i := range pixels {
		pixels[i] = value
	}
	return &Frame{Width: width, Height: height, Pixels: pixels}
}

// SetPixel overwrites the pixel at the 1-based FITS coordinates (x, y).
func (f *Frame) SetPixel(x, y int, value float64) {
	f.Pixels[(y-1)*f.Width+(x-1)] = value
}

// Toolchain serves photometry, detection, thresholding and statistics
// from registered frames. Implements iraf.Toolchain.
type Toolchain struct {
	mu     sync.Mutex
	frames map[string]*Frame
}

// NewToolchain creates a stub toolchain over the given frames, keyed by
// the image path the pipeline will ask for.
func NewToolchain(frames map[string]*Frame) *Toolchain {
	if frames == nil {
		frames = make(map[string]*Frame)
	}
	return &Toolchain{frames: frames}
}

var _ iraf.Toolchain = (*Toolchain)(nil)

// Register adds or replaces a frame.
func (t *Toolchain) Register(image string, frame *Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames[image] = frame
}

func (t *Toolchain) frame(image string) (*Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.frames[image]
	if !ok {
		return nil, fmt.Errorf("%w: %s", iraf.ErrUnknownImage, image)
	}
	return f, nil
}

// Measure emits one record per requested coordinate, formatted the way
// the real photometry binary prints them. A coordinate with no star
// nearby yields a zero record with INDEF magnitude.
func (t *Toolchain) Measure(_ context.Context, image string, coords []domain.Coordinate, params domain.ApertureParams) ([]string, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	f, err := t.frame(image)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(coords))
	for _, c := range coords {
		star, ok := f.nearest(c)
		if !ok {
			lines = append(lines, fmt.Sprintf("%.3f %.3f INDEF 0 0 INDEF", c.X, c.Y))
			continue
		}
		lines = append(lines, fmt.Sprintf("%.3f %.3f %s %g %g %s",
			star.X, star.Y, indef(star.Mag, "%.3f"), star.Sum, star.Flux, indef(star.StdDev, "%.4f")))
	}
	return lines, nil
}

func (f *Frame) nearest(c domain.Coordinate) (Star, bool) {
	best := Star{}
	bestDist := math.Inf(1)
	for _, s := range f.Stars {
		d := math.Hypot(s.X-c.X, s.Y-c.Y)
		if d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, bestDist <= matchRadius
}

// Detect returns the frame's stars at least margin pixels from every edge.
func (t *Toolchain) Detect(_ context.Context, image string, margin int) ([]domain.Coordinate, error) {
	f, err := t.frame(image)
	if err != nil {
		return nil, err
	}

	var coords []domain.Coordinate
	for _, s := range f.Stars {
		m := float64(margin)
		if s.X < m || s.Y < m || s.X > float64(f.Width)-m || s.Y > float64(f.Height)-m {
			continue
		}
		coords = append(coords, domain.Coordinate{X: s.X, Y: s.Y})
	}
	return coords, nil
}

// Threshold registers a derived frame whose stars carry positive flux
// exactly when their peak pixel exceeds level. The cleanup function
// unregisters it.
func (t *Toolchain) Threshold(_ context.Context, image string, level float64) (string, func() error, error) {
	f, err := t.frame(image)
	if err != nil {
		return "", nil, err
	}

	mask := &Frame{Width: f.Width, Height: f.Height}
	for _, s := range f.Stars {
		ms := Star{X: s.X, Y: s.Y, Mag: math.NaN(), StdDev: math.NaN()}
		if s.Peak > level {
			ms.Flux = 25 // pixels above threshold inside the aperture
		}
		mask.Stars = append(mask.Stars, ms)
	}

	name := fmt.Sprintf("%s.mask-%g", image, level)
	t.Register(name, mask)

	cleanup := func() error {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.frames, name)
		return nil
	}
	return name, cleanup, nil
}

// Stats computes pixel statistics over a 1-based inclusive section of
// the frame.
func (t *Toolchain) Stats(_ context.Context, image string, region domain.Region) (domain.RegionStats, error) {
	f, err := t.frame(image)
	if err != nil {
		return domain.RegionStats{}, err
	}
	if region.Inverted() {
		return domain.RegionStats{}, fmt.Errorf("%w: invalid section %s", iraf.ErrToolFailed, region.String())
	}
	if region.X1 < 1 || region.Y1 < 1 || region.X2 > f.Width || region.Y2 > f.Height {
		return domain.RegionStats{}, fmt.Errorf("%w: section %s outside [1:%d,1:%d]",
			iraf.ErrToolFailed, region.String(), f.Width, f.Height)
	}

	values := make([]float64, 0, (region.X2-region.X1+1)*(region.Y2-region.Y1+1))
	for y := region.Y1; y <= region.Y2; y++ {
		for x := region.X1; x <= region.X2; x++ {
			values = append(values, f.Pixels[(y-1)*f.Width+(x-1)])
		}
	}

	mean, stddev := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		stddev = 0
	}
	return domain.RegionStats{
		Mean:   mean,
		StdDev: stddev,
		NPix:   len(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}, nil
}

func indef(v float64, format string) string {
	if math.IsNaN(v) {
		return "INDEF"
	}
	return strings.TrimSpace(fmt.Sprintf(format, v))
}

package domain

import "fmt"

// Region is a rectangular pixel section of an image, inclusive on all
// bounds, using the one-based convention of the image subscript notation
// [x1:x2,y1:y2].
type Region struct {
	X1 int
	X2 int
	Y1 int
	Y2 int
}

// Shrink returns the region reduced by step pixels on each of the four
// sides. The result may be inverted; callers must check.
func (r Region) Shrink(step int) Region {
	return Region{
		X1: r.X1 + step,
		X2: r.X2 - step,
		Y1: r.Y1 + step,
		Y2: r.Y2 - step,
	}
}

// Inverted reports whether either axis has a low bound above its high bound,
// i.e. the region has been shrunk out of existence.
func (r Region) Inverted() bool {
	return r.X1 > r.X2 || r.Y1 > r.Y2
}

// String renders the IRAF-style image subscript for the region.
func (r Region) String() string {
	return fmt.Sprintf("[%d:%d,%d:%d]", r.X1, r.X2, r.Y1, r.Y2)
}

// RegionStats is the summary pixel statistics of a region.
type RegionStats struct {
	Mean   float64
	StdDev float64
	NPix   int
	Min    float64
	Max    float64
}

// StableRegion is the outcome of a successful overscan stabilization:
// the converged rectangle, its statistics, and the threshold that finally
// produced convergence. Immutable result value.
type StableRegion struct {
	Region Region
	Stats  RegionStats

	// Threshold is the fractional-change threshold convergence was reached
	// with. Equals the caller's threshold times 2^Relaxations.
	Threshold   float64
	Relaxations int
}

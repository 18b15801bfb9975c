package photometry

import "photometry-lab/internal/domain"

// Shift translates every coordinate by the registration offset
// (dx, dy), returning a new list. The input list is never modified, so
// a reference list can be re-registered against any number of frames.
func Shift(coords []domain.Coordinate, dx, dy float64) []domain.Coordinate {
	shifted := make([]domain.Coordinate, len(coords))
	for i, c := range coords {
		shifted[i] = c.Shifted(dx, dy)
	}
	return shifted
}

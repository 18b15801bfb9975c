package domain

// Coordinate is an (x, y) pixel position on an image.
// Detection produces these once; registration never mutates them,
// it derives new coordinates instead.
type Coordinate struct {
	X float64
	Y float64
}

// Shifted returns a new coordinate translated by (dx, dy).
func (c Coordinate) Shifted(dx, dy float64) Coordinate {
	return Coordinate{X: c.X + dx, Y: c.Y + dy}
}

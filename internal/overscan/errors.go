package overscan

import "errors"

var (
	// ErrNoStableRegion indicates the relaxation bound was reached without
	// the region statistics ever converging.
	ErrNoStableRegion = errors.New("no stable region found within relaxation bound")

	// ErrInvalidParams indicates a non-positive threshold or shrink step.
	ErrInvalidParams = errors.New("threshold and step must be positive")
)

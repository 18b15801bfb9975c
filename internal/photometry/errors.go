package photometry

import "errors"

var (
	// ErrNoCoordinates indicates a measurement was requested with an
	// empty coordinate list.
	ErrNoCoordinates = errors.New("no coordinates to measure")

	// ErrRecordCountMismatch indicates the tool emitted a different
	// number of records than coordinates it was given.
	ErrRecordCountMismatch = errors.New("record count does not match coordinate count")

	// ErrCenterMismatch indicates a record's echoed center strayed from
	// the requested coordinate.
	ErrCenterMismatch = errors.New("measured center does not match requested coordinate")

	// ErrMalformedRecord indicates a photometry record could not be parsed.
	ErrMalformedRecord = errors.New("unparseable photometry record")

	// ErrMissingImage indicates a required image path does not exist.
	ErrMissingImage = errors.New("image file does not exist")
)

package iraf

import "errors"

var (
	// ErrToolFailed indicates the external tool exited with a non-zero status.
	ErrToolFailed = errors.New("external tool exited with an error")

	// ErrMalformedOutput indicates the tool output could not be parsed.
	ErrMalformedOutput = errors.New("unparseable tool output")

	// ErrUnknownImage indicates the requested image is not available to the tool.
	ErrUnknownImage = errors.New("unknown image")
)

package domain

import (
	"errors"
	"math"
)

// ErrNonPositiveGain is returned by SNR when the CCD gain is not positive.
var ErrNonPositiveGain = errors.New("CCD gain must be a positive value")

// StarPhotometry is the aperture photometry of one star in one image.
// It carries the coordinate the measurement was requested at together with
// the parsed record, so a result can never drift out of alignment with its
// input coordinate.
type StarPhotometry struct {
	Star      Coordinate // center the photometer echoed back
	Magnitude Magnitude  // instrumental magnitude in the aperture
	SkySum    float64    // total counts in the aperture, sky included
	Flux      float64    // total counts in the aperture, sky excluded
	SkyStdDev *float64   // per-pixel stddev of the sky estimate; nil when INDEF

	// SkySum may legitimately be smaller than Flux: photometry on the noisy
	// margins of a calibrated frame can see negative sky. Not a corruption
	// signal.
}

// SNR returns the signal-to-noise ratio of the star under the Poisson-noise
// approximation, for a CCD gain in e-/ADU.
//
// A zero sky-inclusive sum means nothing was measured and yields exactly 0.
// A negative sum yields a negative SNR of magnitude |flux·gain|/sqrt(|sum·gain|):
// the sign is a deliberate marker that whatever had photometry done on it was
// almost surely not a star (calibrated image margins can go negative).
func (p *StarPhotometry) SNR(gain float64) (float64, error) {
	if gain <= 0 {
		return 0, ErrNonPositiveGain
	}

	switch {
	case p.SkySum == 0:
		return 0.0, nil
	case p.SkySum < 0:
		return -(math.Abs(p.Flux*gain) / math.Sqrt(math.Abs(p.SkySum*gain))), nil
	default:
		return (p.Flux * gain) / math.Sqrt(p.SkySum*gain), nil
	}
}

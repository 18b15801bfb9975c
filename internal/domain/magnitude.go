package domain

import "math"

// MagnitudeStatus tags the three possible outcomes of a magnitude measurement.
type MagnitudeStatus string

const (
	// MagnitudeOK means the photometer computed an ordinary magnitude.
	MagnitudeOK MagnitudeStatus = "OK"
	// MagnitudeUndefined means the photometer reported INDEF for the star.
	MagnitudeUndefined MagnitudeStatus = "UNDEFINED"
	// MagnitudeSaturated means one or more aperture pixels exceeded the
	// detector saturation level. Set by saturation classification only.
	MagnitudeSaturated MagnitudeStatus = "SATURATED"
)

// Magnitude is a tagged magnitude value. A star is never both undefined
// and saturated: saturation classification overwrites whatever status the
// measurement had.
type Magnitude struct {
	Status MagnitudeStatus
	Value  float64 // meaningful for OK; +Inf for SATURATED; zero for UNDEFINED
}

// MagnitudeOf returns an ordinary magnitude.
func MagnitudeOf(v float64) Magnitude {
	return Magnitude{Status: MagnitudeOK, Value: v}
}

// UndefinedMagnitude returns the INDEF sentinel.
func UndefinedMagnitude() Magnitude {
	return Magnitude{Status: MagnitudeUndefined}
}

// SaturatedMagnitude returns the saturation sentinel (+Inf).
func SaturatedMagnitude() Magnitude {
	return Magnitude{Status: MagnitudeSaturated, Value: math.Inf(1)}
}

// IsUndefined reports whether the magnitude is the INDEF sentinel.
func (m Magnitude) IsUndefined() bool { return m.Status == MagnitudeUndefined }

// IsSaturated reports whether the magnitude is the saturation sentinel.
func (m Magnitude) IsSaturated() bool { return m.Status == MagnitudeSaturated }

package domain

import "fmt"

// ApertureParams are the parameters of one aperture photometry pass.
type ApertureParams struct {
	Annulus  float64 // inner radius of the sky annulus, pixels
	Dannulus float64 // width of the sky annulus, pixels
	Aperture float64 // aperture radius, pixels
	ExpTimeK string  // FITS keyword holding the exposure time, for magnitude normalization
}

// Validate checks that all radii are positive and the exposure keyword is set.
func (p ApertureParams) Validate() error {
	if p.Annulus <= 0 {
		return fmt.Errorf("sky annulus radius must be positive, got %g", p.Annulus)
	}
	if p.Dannulus <= 0 {
		return fmt.Errorf("sky annulus width must be positive, got %g", p.Dannulus)
	}
	if p.Aperture <= 0 {
		return fmt.Errorf("aperture radius must be positive, got %g", p.Aperture)
	}
	if p.ExpTimeK == "" {
		return fmt.Errorf("exposure time keyword must not be empty")
	}
	return nil
}

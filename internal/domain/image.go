package domain

// ImageRecord is the header bookkeeping for one FITS frame.
// Corresponds to the images table in PostgreSQL.
type ImageRecord struct {
	ImageID    string  // PRIMARY KEY, deterministic hash
	Path       string  // filesystem path the frame was photometered from
	Object     string  // OBJECT keyword
	Filter     string  // photometric filter name
	ObservedAt int64   // observation midpoint, Unix seconds UTC
	ExpTime    float64 // exposure time, seconds
	Gain       float64 // CCD gain, e-/ADU
	Airmass    float64 // airmass at observation
	CreatedAt  int64   // record creation timestamp, Unix seconds
}

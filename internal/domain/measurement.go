package domain

// MeasurementRecord is one star's photometry in one image, as persisted.
// Corresponds to the measurements table in PostgreSQL.
type MeasurementRecord struct {
	ImageID   string          // image the measurement was taken on
	StarID    string          // deterministic star identity, anchored to the reference frame
	X         float64         // measured center, shifted-frame pixels
	Y         float64         //
	Status    MagnitudeStatus // OK | UNDEFINED | SATURATED
	Magnitude *float64        // nil unless Status == OK
	SkySum    float64         // aperture counts, sky included
	Flux      float64         // aperture counts, sky excluded
	SkyStdDev *float64        // nil when the photometer reported INDEF
	SNR       float64         // signal-to-noise ratio at the frame's gain
	CreatedAt int64           // record creation timestamp, Unix seconds
}

// LightCurvePoint is one sample of a star's light curve.
// Corresponds to the light_curve table in ClickHouse.
type LightCurvePoint struct {
	StarID     string
	ObservedAt int64 // observation midpoint, Unix seconds UTC
	ImageID    string
	Magnitude  *float64 // nil for undefined or saturated measurements
	SNR        float64
}

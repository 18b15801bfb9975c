// Package fits reads the header bookkeeping the pipeline needs from
// FITS images: observation metadata, the uncalibrated-original pointer
// and file checksums.
package fits

// Keywords names the FITS header keywords the pipeline reads. Different
// observatories spell these differently, so every one is configurable.
type Keywords struct {
	Object       string `yaml:"objectk"`
	Filter       string `yaml:"filterk"`
	Date         string `yaml:"datek"`
	ExpTime      string `yaml:"exptimek"`
	Gain         string `yaml:"gaink"`
	Airmass      string `yaml:"airmassk"`
	Uncalibrated string `yaml:"uncimgk"`
}

// DefaultKeywords returns the conventional keyword names.
func DefaultKeywords() Keywords {
	return Keywords{
		Object:       "OBJECT",
		Filter:       "FILTER",
		Date:         "DATE-OBS",
		ExpTime:      "EXPTIME",
		Gain:         "GAIN",
		Airmass:      "AIRMASS",
		Uncalibrated: "UNCIMGK",
	}
}

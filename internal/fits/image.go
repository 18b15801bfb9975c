package fits

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/astrogo/fitsio"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/idhash"
)

var (
	// ErrMissingKeyword indicates a required header keyword is absent.
	ErrMissingKeyword = errors.New("keyword not found in FITS header")

	// ErrBadKeyword indicates a keyword value has an unusable type or format.
	ErrBadKeyword = errors.New("unusable FITS keyword value")
)

// dateLayouts are the DATE-OBS formats seen in the wild, tried in order.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Image is a FITS file whose primary header has been read into memory.
type Image struct {
	Path string

	cards map[string]interface{}
}

// Open reads the primary header of the FITS file at path.
func Open(path string) (*Image, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("reading FITS %s: %w", path, err)
	}
	defer f.Close()

	hdr := f.HDU(0).Header()
	cards := make(map[string]interface{}, len(hdr.Keys()))
	for _, key := range hdr.Keys() {
		if card := hdr.Get(key); card != nil {
			cards[key] = card.Value
		}
	}
	return &Image{Path: path, cards: cards}, nil
}

// StringKey returns the value of a string-valued keyword.
func (img *Image) StringKey(key string) (string, error) {
	v, ok := img.cards[key]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrMissingKeyword, key, img.Path)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s in %s holds %T", ErrBadKeyword, key, img.Path, v)
	}
	return strings.TrimSpace(s), nil
}

// FloatKey returns the value of a numeric keyword. String values that
// parse as numbers are accepted; some instruments write them that way.
func (img *Image) FloatKey(key string) (float64, error) {
	v, ok := img.cards[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s in %s", ErrMissingKeyword, key, img.Path)
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q in %s", ErrBadKeyword, key, val, img.Path)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s in %s holds %T", ErrBadKeyword, key, img.Path, v)
	}
}

// ObservationDate returns the Unix time of the midpoint of the
// exposure: the date keyword marks when the shutter opened, so half the
// exposure time is added to it.
func (img *Image) ObservationDate(kw Keywords) (int64, error) {
	raw, err := img.StringKey(kw.Date)
	if err != nil {
		return 0, err
	}

	var start time.Time
	var parseErr error
	for _, layout := range dateLayouts {
		start, parseErr = time.Parse(layout, raw)
		if parseErr == nil {
			break
		}
	}
	if parseErr != nil {
		return 0, fmt.Errorf("%w: %s=%q in %s", ErrBadKeyword, kw.Date, raw, img.Path)
	}

	exptime, err := img.FloatKey(kw.ExpTime)
	if err != nil {
		return 0, err
	}
	return start.Unix() + int64(exptime/2), nil
}

// UncalibratedPath returns the path of the raw original this image was
// calibrated from, as recorded in the header. An image with no such
// keyword is its own original.
func (img *Image) UncalibratedPath(kw Keywords) string {
	path, err := img.StringKey(kw.Uncalibrated)
	if err != nil || path == "" {
		return img.Path
	}
	return path
}

// Checksum returns the hex SHA1 of the file contents.
func (img *Image) Checksum() (string, error) {
	f, err := os.Open(img.Path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", img.Path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksumming %s: %w", img.Path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Record assembles the persistent bookkeeping record for the image.
// Object and filter fall back to empty strings when the keywords are
// absent; date, exposure time and gain are required.
func (img *Image) Record(kw Keywords) (*domain.ImageRecord, error) {
	observedAt, err := img.ObservationDate(kw)
	if err != nil {
		return nil, err
	}
	exptime, err := img.FloatKey(kw.ExpTime)
	if err != nil {
		return nil, err
	}
	gain, err := img.FloatKey(kw.Gain)
	if err != nil {
		return nil, err
	}

	object, _ := img.StringKey(kw.Object)
	filter, _ := img.StringKey(kw.Filter)
	airmass, _ := img.FloatKey(kw.Airmass)

	checksum, err := img.Checksum()
	if err != nil {
		return nil, err
	}

	return &domain.ImageRecord{
		ImageID:    idhash.ComputeImageID(img.Path, checksum, observedAt),
		Path:       img.Path,
		Object:     object,
		Filter:     filter,
		ObservedAt: observedAt,
		ExpTime:    exptime,
		Gain:       gain,
		Airmass:    airmass,
		CreatedAt:  time.Now().Unix(),
	}, nil
}

package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeStarID computes a deterministic star_id using SHA256.
// Formula: SHA256(image_id|x|y)
// Coordinates are formatted with three decimals, matching the pixel
// precision the photometry tool reports, so re-runs over the same
// detection list produce the same identifiers.
func ComputeStarID(imageID string, x float64, y float64) string {
	data := fmt.Sprintf("%s|%.3f|%.3f", imageID, x, y)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])[:16]
}

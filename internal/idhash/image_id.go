package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeImageID computes a deterministic image_id using SHA256.
// Formula: SHA256(path|checksum|date_obs)
// Returns a base58-encoded hash truncated to 16 characters, which is
// short enough for log lines while keeping collisions implausible for
// any realistic observing campaign.
func ComputeImageID(path string, checksum string, dateObs int64) string {
	data := fmt.Sprintf("%s|%s|%d", path, checksum, dateObs)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])[:16]
}

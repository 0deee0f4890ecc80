package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// digestBytes returns the SHA-256 hex digest of the payload.
func digestBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// computeID derives the block id from the payload digest and the origin.
//
// The hash input is the JSON encoding of a fixed struct, which gives a
// deterministic byte layout (struct fields marshal in declaration order), so
// the same digest+origin always produces the same id across runs.
func computeID(digest string, origin Origin) string {
	data, err := json.Marshal(struct {
		Digest string `json:"digest"`
		Origin Origin `json:"origin"`
	}{
		Digest: digest,
		Origin: origin,
	})
	if err != nil {
		panic("failed to marshal id input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

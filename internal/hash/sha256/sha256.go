// Package sha256 provides SHA-256 hashing utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements news.Hasher using SHA-256. A positive length truncates
// the hex digest.
type Hasher struct {
	length int
}

// New returns a SHA-256 hasher whose digests are cut to length hex chars.
// A non-positive length keeps the full digest.
func New(length int) *Hasher {
	return &Hasher{length: length}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if h.length > 0 && h.length < len(digest) {
		digest = digest[:h.length]
	}
	return digest, nil
}

// Package sha256 provides the content digests used for identifiers and integrity fields.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Hasher produces hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes data and returns the full hex digest.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Prefix returns the first n hex characters of the digest of data.
// n is clamped to the digest length.
func (h *Hasher) Prefix(data []byte, n int) string {
	digest := h.Hash(data)
	if n <= 0 || n > len(digest) {
		return digest
	}
	return digest[:n]
}

// File streams the file at path through SHA-256.
func (h *Hasher) File(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- callers pass paths produced by the path manager.
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // read-only handle

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

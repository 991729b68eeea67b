// Package fingerprint computes the content-addressing hashes used
// throughout the store (§4.C): every Archive, File, NormalizedFile, and
// Snippet is keyed by the lowercase-hex SHA-256 of its canonical bytes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// OfBytes returns the lowercase-hex SHA-256 digest of b.
func OfBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// OfString returns the lowercase-hex SHA-256 digest of s's UTF-8 bytes.
func OfString(s string) string {
	return OfBytes([]byte(s))
}

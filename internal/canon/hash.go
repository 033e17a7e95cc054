package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sum computes SHA-256 with domain separation: SHA256(domain || 0x00 || data).
// The null separator prevents domain/data boundary ambiguity.
func Sum(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns Sum over the canonical JSON of v.
func Digest(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return Sum(domain, data), nil
}

// MustDigest is like Digest but panics on error.
// Use only in tests or when v is known to encode.
func MustDigest(domain string, v any) string {
	d, err := Digest(domain, v)
	if err != nil {
		panic(err)
	}
	return d
}

package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainFingerprint prefixes every fingerprint. The version suffix allows a
// future encoding change without silently matching old digests.
const DomainFingerprint = "scd2/fingerprint/v1"

// FingerprintLen is the length of a hex-encoded fingerprint.
const FingerprintLen = 64

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content digest of business attributes in schema
// column order. The id and the bookkeeping columns never participate.
//
// Attributes are encoded as a canonical JSON array, so ("AB","C") and
// ("A","BC") encode as ["AB","C"] and ["A","BC"] and cannot collide the way
// plain concatenation would.
func Fingerprint(attrs []Value) (string, error) {
	canonical, err := MarshalCanonical(attrs)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainFingerprint, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when the attributes are known to be valid.
func MustFingerprint(attrs []Value) string {
	fp, err := Fingerprint(attrs)
	if err != nil {
		panic(err)
	}
	return fp
}

package effect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainValue prefixes value hashes. The version suffix allows a future
// algorithm migration without colliding with old hashes.
const DomainValue = "causaloid/value/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content-addressed identity of a Value.
// Equal values always hash equal; Graph values hash by content, not reference.
func Hash(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash value: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be finite.
func MustHash(v Value) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}

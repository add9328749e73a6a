// Package eventid derives the deterministic identity of an inbound SMS from its content.
package eventid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

const (
	// DefaultLength is the number of hex characters kept from the digest (64 bits).
	DefaultLength = 16

	// MaxLength is the full SHA-256 digest rendered as hex.
	MaxLength = sha256.Size * 2

	// Separator joins the content fields before hashing.
	Separator = "|"
)

var defaultDeriver = &Deriver{length: DefaultLength}

// Deriver computes truncated SHA-256 identities of a fixed length.
type Deriver struct {
	length int
}

// NewDeriver returns a Deriver keeping the first length hex characters of the digest
func NewDeriver(length int) (*Deriver, error) {
	if length < 1 || length > MaxLength {
		return nil, fmt.Errorf("event id length must be between 1 and %d, got %d", MaxLength, length)
	}
	return &Deriver{length: length}, nil
}

// Derive returns the identity of (body, sender, receivedAt) using the default length.
func Derive(body, sender, receivedAt string) string {
	return defaultDeriver.Derive(body, sender, receivedAt)
}

// Derive hashes the fields exactly as supplied. No trimming or case folding is applied,
// so identical triples always map to the same identity.
func (d *Deriver) Derive(body, sender, receivedAt string) string {
	sum := sha256.Sum256([]byte(body + Separator + sender + Separator + receivedAt))
	return hex.EncodeToString(sum[:])[:d.length]
}

// Length returns the number of hex characters in derived identities.
func (d *Deriver) Length() int {
	return d.length
}

// Bits returns the number of digest bits kept in derived identities.
func (d *Deriver) Bits() int {
	return d.length * 4
}

// CollisionProbability estimates the chance that volume distinct events produce at least one
// identity collision when identities keep bits bits of the digest (birthday bound).
func CollisionProbability(bits int, volume uint64) float64 {
	if volume < 2 {
		return 0
	}
	n := float64(volume)
	space := math.Exp2(float64(bits))
	return -math.Expm1(-n * (n - 1) / (2 * space))
}

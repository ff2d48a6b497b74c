// README: Common value types shared across modules.
package types

import (
	"crypto/rand"
	"encoding/hex"
)

// ID is an opaque entity identifier (32-char hex from the ID generator).
type ID string

// NewID returns a random 32-char hex identifier.
func NewID() ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return ID(hex.EncodeToString(b[:]))
}

// Point is a WGS-84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

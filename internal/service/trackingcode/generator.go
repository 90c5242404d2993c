package trackingcode

import (
	"crypto/rand"
	"fmt"
)

// Crockford base32 without I, L, O and U.
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Code prefixes and body lengths.
const (
	ShipmentPrefix = "SHP-"
	ShipmentLength = 10
	VendorPrefix   = "TRK-"
	VendorLength   = 12
)

// RandomCode is the default Generator backed by crypto/rand.
func RandomCode(prefix string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	out := make([]byte, 0, len(prefix)+n)
	out = append(out, prefix...)
	for _, b := range buf {
		out = append(out, alphabet[b&31])
	}
	return string(out), nil
}

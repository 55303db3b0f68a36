// Package accesscode generates short visitor-facing gate pass codes.
//
// These are physical-access convenience codes typed at a keypad or scanned
// from a QR code, not security tokens; collisions are handled by the caller
// re-checking currently redeemable passes, so a fast PRNG is sufficient.
package accesscode

import (
	"math/rand"
	"strconv"
	"strings"
)

// Format selects the shape of a generated code.
type Format string

const (
	// FormatNumeric is a 6-digit code suited to guard keypad entry.
	FormatNumeric Format = "numeric"
	// FormatAlphanumeric is a 6-character uppercase code suited to
	// share-link and QR flows.
	FormatAlphanumeric Format = "alphanumeric"
)

const (
	numericMin = 100000
	numericMax = 999999

	alphanumericLength  = 6
	alphanumericCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Valid reports whether f names a supported format.
func (f Format) Valid() bool {
	return f == FormatNumeric || f == FormatAlphanumeric
}

// Numeric returns a uniformly random 6-digit code in 100000..999999.
func Numeric() string {
	return strconv.Itoa(numericMin + rand.Intn(numericMax-numericMin+1))
}

// Alphanumeric returns a 6-character uppercase alphanumeric code.
func Alphanumeric() string {
	var b strings.Builder
	b.Grow(alphanumericLength)
	for i := 0; i < alphanumericLength; i++ {
		b.WriteByte(alphanumericCharset[rand.Intn(len(alphanumericCharset))])
	}
	return b.String()
}

// Generate returns a code in the requested format, defaulting to numeric
// for unrecognised formats.
func Generate(f Format) string {
	if f == FormatAlphanumeric {
		return Alphanumeric()
	}
	return Numeric()
}

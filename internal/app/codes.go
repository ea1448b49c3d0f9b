package app

import (
	"strings"

	"github.com/valyala/fastrand"
)

// Codes are normalized to uppercase on every lookup, so the alphabet only
// needs the uppercase range.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const defaultCodeLength = 6

// newCode produces a random session code of the given length.
func newCode(length int) string {
	if length <= 0 {
		length = defaultCodeLength
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(codeAlphabet[fastrand.Uint32n(uint32(len(codeAlphabet)))])
	}
	return b.String()
}

// NormalizeCode uppercases a session code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

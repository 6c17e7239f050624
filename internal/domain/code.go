package domain

import (
	"math/rand"
	"strings"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the number of characters in a session code.
	CodeLength = 6
)

// NewSessionCode draws a short human-typeable session code from rnd.
func NewSessionCode(rnd *rand.Rand) string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(codeAlphabet[rnd.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// NormalizeCode upper-cases and trims a code typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

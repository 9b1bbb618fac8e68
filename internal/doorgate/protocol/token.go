package protocol

import "strings"

// TokenLength is the number of hex characters in a valid token.
const TokenLength = 16

// NormalizeToken strips every character outside [0-9a-fA-F] from raw and
// returns the remainder if it is exactly TokenLength characters long.
// Case is preserved.
func NormalizeToken(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if isHex(r) {
			b.WriteRune(r)
		}
	}

	token := b.String()
	if len(token) != TokenLength {
		return "", ErrInvalidTokenFormat
	}
	return token, nil
}

func isHex(r rune) bool {
	return ('0' <= r && r <= '9') || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F')
}

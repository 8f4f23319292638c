package clientauth

import (
	"strings"

	"syncpair/internal/crypto"
)

// AuthCodeLength is the number of characters in an auth code.
const AuthCodeLength = 6

// authCodeAlphabet is base32 with L and O swapped for 8 and 9 so codes read
// unambiguously.
const authCodeAlphabet = "ABCDEFGHIJK8MN9PQRSTUVWXYZ234567"

// NewAuthCode returns a fresh auth code.
func NewAuthCode(p *crypto.Provider) (string, error) {
	b, err := p.RandomBytes(AuthCodeLength)
	if err != nil {
		return "", err
	}
	out := make([]byte, AuthCodeLength)
	for i, v := range b {
		out[i] = authCodeAlphabet[int(v)%len(authCodeAlphabet)]
	}
	return string(out), nil
}

// NormaliseAuthCode canonicalises a code typed by a user.
func NormaliseAuthCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer(" ", "", "-", "").Replace(code)
}

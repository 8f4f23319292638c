package clientauth

import (
	"crypto/subtle"
	"fmt"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
)

// newVerifier binds code to the account password under fresh salts.
func newVerifier(p *crypto.Provider, code, password string) (domain.AuthVerifier, error) {
	inner, err := p.Salt()
	if err != nil {
		return domain.AuthVerifier{}, err
	}
	salt, err := p.Salt()
	if err != nil {
		return domain.AuthVerifier{}, err
	}
	digest, err := verifierDigest(code, password, inner, salt)
	if err != nil {
		return domain.AuthVerifier{}, err
	}
	return domain.AuthVerifier{InnerSalt: inner, Salt: salt, Digest: digest}, nil
}

// verifierDigest is PBKDF2(code || PBKDF2(password, innerSalt), salt).
func verifierDigest(code, password, innerSalt, salt string) (string, error) {
	inner, err := crypto.FromB64(innerSalt)
	if err != nil {
		return "", fmt.Errorf("inner salt: %w", domain.ErrFormat)
	}
	outer, err := crypto.FromB64(salt)
	if err != nil {
		return "", fmt.Errorf("salt: %w", domain.ErrFormat)
	}
	hash := crypto.PasswordDigest([]byte(password), inner, crypto.DigestIterations, crypto.DigestBits)
	return crypto.PasswordDigest([]byte(code+hash), outer, crypto.DigestIterations, crypto.DigestBits), nil
}

// verify reports whether v was produced from code and password. Malformed
// verifiers never match.
func verify(v domain.AuthVerifier, code, password string) bool {
	want, err := verifierDigest(code, password, v.InnerSalt, v.Salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(v.Digest)) == 1
}

package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DigestIterations is the PBKDF2 work factor for password and auth-code
	// digests.
	DigestIterations = 1000
	// DigestBits is the digest length in bits.
	DigestBits = 256
)

// PasswordDigest stretches secret with PBKDF2-HMAC-SHA256 and returns the
// digest base64 encoded.
func PasswordDigest(secret, salt []byte, iterations, keyLenBits int) string {
	return B64(pbkdf2.Key(secret, salt, iterations, keyLenBits/8, sha256.New))
}

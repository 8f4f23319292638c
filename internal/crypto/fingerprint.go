package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"syncpair/internal/domain"
)

// Fingerprint returns a short fingerprint of a public key for humans to
// compare out of band.
//
// It hashes with SHA-256, truncates to 10 bytes and groups the hex in fours.
func Fingerprint(pub domain.X25519Public) domain.Fingerprint {
	sum := sha256.Sum256(pub[:])
	h := hex.EncodeToString(sum[:10])
	groups := make([]string, 0, len(h)/4)
	for i := 0; i < len(h); i += 4 {
		groups = append(groups, h[i:i+4])
	}
	return domain.Fingerprint(strings.Join(groups, " "))
}

package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"syncpair/internal/domain"
)

// SaltBytes is the size of salts generated for password digests.
const SaltBytes = 16

// Provider is the crypto backend. It owns the entropy source so that callers
// never reach for a global one.
type Provider struct {
	rand io.Reader
}

// NewProvider returns a Provider reading entropy from r, or from crypto/rand
// when r is nil.
func NewProvider(r io.Reader) *Provider {
	if r == nil {
		r = rand.Reader
	}
	return &Provider{rand: r}
}

// Reader exposes the provider's entropy source.
func (p *Provider) Reader() io.Reader { return p.rand }

// RandomBytes returns n bytes from the provider's entropy source.
func (p *Provider) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(p.rand, b); err != nil {
		return nil, fmt.Errorf("%w: read entropy: %v", domain.ErrCrypto, err)
	}
	return b, nil
}

// Salt returns a fresh base64 salt for PasswordDigest.
func (p *Provider) Salt() (string, error) {
	b, err := p.RandomBytes(SaltBytes)
	if err != nil {
		return "", err
	}
	return B64(b), nil
}

// GenerateKeyPair returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func (p *Provider) GenerateKeyPair() (domain.KeyPair, error) {
	var kp domain.KeyPair
	if _, err := io.ReadFull(p.rand, kp.Private[:]); err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: read entropy: %v", domain.ErrCrypto, err)
	}
	clamp(&kp.Private)
	pub, err := curve25519.X25519(kp.Private.Slice(), curve25519.Basepoint)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("%w: derive public key: %v", domain.ErrCrypto, err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret computes X25519 Diffie–Hellman. Low-order or otherwise
// malformed peer keys are rejected.
func SharedSecret(priv domain.X25519Private, peer domain.X25519Public) ([32]byte, error) {
	var out [32]byte
	secret, err := curve25519.X25519(priv.Slice(), peer.Slice())
	if err != nil {
		return out, fmt.Errorf("%w: x25519: %v", domain.ErrCrypto, err)
	}
	copy(out[:], secret)
	return out, nil
}

func clamp(k *domain.X25519Private) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

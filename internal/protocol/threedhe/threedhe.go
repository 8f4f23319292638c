package threedhe

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
	"syncpair/internal/util/memzero"
)

// KeySize is the size of each derived key.
const KeySize = 32

// info binds derived keys to this protocol.
var info = []byte("syncpair clientauth 3dhe v1")

// Keys is the per-session key pair used by the envelope.
type Keys struct {
	Cipher [KeySize]byte
	MAC    [KeySize]byte
}

// Wipe zeroes both keys.
func (k *Keys) Wipe() {
	memzero.Zero(k.Cipher[:])
	memzero.Zero(k.MAC[:])
}

// Derive computes the session keys for role from our two private keys and the
// other party's two public keys.
func Derive(
	role domain.Role,
	ownIdentity domain.X25519Private,
	ownEphemeral domain.X25519Private,
	otherIdentity domain.X25519Public,
	otherEphemeral domain.X25519Public,
) (Keys, error) {
	var pairs [3]struct {
		priv domain.X25519Private
		pub  domain.X25519Public
	}
	switch role {
	case domain.RoleInitiator:
		pairs[0].priv, pairs[0].pub = ownIdentity, otherEphemeral  // DH(IA, EB)
		pairs[1].priv, pairs[1].pub = ownEphemeral, otherIdentity  // DH(EA, IB)
		pairs[2].priv, pairs[2].pub = ownEphemeral, otherEphemeral // DH(EA, EB)
	case domain.RoleResponder:
		pairs[0].priv, pairs[0].pub = ownEphemeral, otherIdentity  // DH(EB, IA)
		pairs[1].priv, pairs[1].pub = ownIdentity, otherEphemeral  // DH(IB, EA)
		pairs[2].priv, pairs[2].pub = ownEphemeral, otherEphemeral // DH(EB, EA)
	default:
		return Keys{}, fmt.Errorf("%w: unknown role %q", domain.ErrCrypto, role)
	}

	secret := make([]byte, 0, 3*32)
	defer func() { memzero.Zero(secret) }()
	for _, p := range pairs {
		dh, err := crypto.SharedSecret(p.priv, p.pub)
		if err != nil {
			return Keys{}, err
		}
		secret = append(secret, dh[:]...)
		memzero.Zero(dh[:])
	}

	var keys Keys
	r := hkdf.New(sha256.New, secret, nil, info)
	if _, err := io.ReadFull(r, keys.Cipher[:]); err != nil {
		return Keys{}, fmt.Errorf("%w: hkdf: %v", domain.ErrCrypto, err)
	}
	if _, err := io.ReadFull(r, keys.MAC[:]); err != nil {
		return Keys{}, fmt.Errorf("%w: hkdf: %v", domain.ErrCrypto, err)
	}
	return keys, nil
}

package types

import (
	"encoding/base64"
	"fmt"
	"time"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// String returns the standard base64 form used on the wire.
func (p X25519Public) String() string { return base64.StdEncoding.EncodeToString(p[:]) }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// IsZero reports whether the key is unset.
func (k X25519Private) IsZero() bool { return k == X25519Private{} }

// ParseX25519Public decodes a base64 public key as carried in client records
// and envelopes.
func ParseX25519Public(s string) (X25519Public, error) {
	var out X25519Public
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("decode public key: %w", err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("public key: want %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

// KeyPair is a Curve25519 key pair.
type KeyPair struct {
	Private X25519Private
	Public  X25519Public
}

// KeyStatus is the lifecycle state of an ephemeral pre-key.
type KeyStatus string

const (
	KeyPublished   KeyStatus = "published"
	KeyProvisioned KeyStatus = "provisioned"
	KeyDeleted     KeyStatus = "deleted"
)

// EphemeralKey is a one-time pre-key owned by exactly one client. Private is
// only populated for keys owned by the local device.
type EphemeralKey struct {
	ID         KeyID
	ClientID   ClientID
	Public     X25519Public
	Private    X25519Private
	Status     KeyStatus
	ModifiedAt time.Time
}

// Package identity manages the local device identity: a client record whose
// X25519 key pair anchors every pairing session.
package identity

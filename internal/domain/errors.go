package domain

import "errors"

var (
	// ErrCrypto is returned when key material cannot be parsed or a key
	// agreement or derivation fails.
	ErrCrypto = errors.New("crypto failure")
	// ErrIntegrity is returned when an envelope's MAC does not verify.
	ErrIntegrity = errors.New("message integrity check failed")
	// ErrFormat is returned for malformed JSON or missing fields.
	ErrFormat = errors.New("malformed message")
	// ErrSessionMismatch is returned when an envelope's identifiers do not
	// match the session it claims to belong to.
	ErrSessionMismatch = errors.New("envelope does not match session")
	// ErrNoPublishedKeys is returned when a peer has no usable pre-key.
	ErrNoPublishedKeys = errors.New("peer has no published keys")
	// ErrAlreadyProvisioned is returned when a one-time key is consumed twice.
	ErrAlreadyProvisioned = errors.New("ephemeral key already provisioned")
	// ErrInvalidTransition is returned when a session is moved along an edge
	// its state machine does not have.
	ErrInvalidTransition = errors.New("invalid session state transition")
	// ErrDuplicate is returned by a MessageHandler for an envelope it has
	// already processed. The envelope is acknowledged but not counted.
	ErrDuplicate = errors.New("message already processed")

	ErrNotFound           = errors.New("not found")
	ErrIdentityExists     = errors.New("local identity already exists")
	ErrNoIdentity         = errors.New("no local identity; run init first")
	ErrWrongPassphrase    = errors.New("wrong passphrase or corrupted database")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
)

// IsPermanent reports whether err means the message itself is bad, so that
// processing it again can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrIntegrity) ||
		errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrSessionMismatch) ||
		errors.Is(err, ErrAlreadyProvisioned) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrCrypto)
}

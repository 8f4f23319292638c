package types

// ProtocolVersion is the clientauth protocol generation spoken by this client.
const ProtocolVersion = "1"

// ClientID is the opaque, stable identifier of a device.
type ClientID string

// String returns the string form of the client identifier.
func (id ClientID) String() string { return string(id) }

// KeyID identifies one ephemeral pre-key.
type KeyID string

// String returns the string form of the key identifier.
func (id KeyID) String() string { return string(id) }

// SessionID identifies one pairing of two ephemeral keys.
type SessionID string

// String returns the string form of the session identifier.
func (id SessionID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

package types

import "time"

// SessionState is a node of the per-pair protocol state machine.
type SessionState string

const (
	StateRequestPending  SessionState = "requestpending"
	StateRequestSent     SessionState = "requestsent"
	StateResponsePending SessionState = "responsepending"
	StateResponseSent    SessionState = "responsesent"
	StateMessageSent     SessionState = "messagesent"
	StateClosed          SessionState = "closed"
)

// Role is the side a device plays in the 3DHE agreement.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Session is the persisted state of one pairing between two ephemeral keys.
type Session struct {
	ID                  SessionID
	Role                Role
	OwnEphemeralKeyID   KeyID
	OtherClientID       ClientID
	OtherIdentityKey    X25519Public
	OtherEphemeralKeyID KeyID
	OtherEphemeralKey   X25519Public
	OwnSequence         int
	OtherSequence       int
	State               SessionState
	ModifiedAt          time.Time
}

// Closed reports whether the session reached its terminal state.
func (s Session) Closed() bool { return s.State == StateClosed }

// NewSessionID concatenates the two ephemeral key ids. The initiator puts its
// own key first, the responder the other party's, so both sides agree.
func NewSessionID(role Role, own, other KeyID) SessionID {
	if role == RoleInitiator {
		return SessionID(own.String() + other.String())
	}
	return SessionID(other.String() + own.String())
}

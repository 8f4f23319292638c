package types

import "time"

// MessageType names the protocol message kinds. The protocol defines only two.
type MessageType string

const (
	TypeAuthRequest  MessageType = "clientauthrequest"
	TypeAuthResponse MessageType = "clientauthresponse"
)

const (
	SequenceRequest  = 1
	SequenceResponse = 2
)

// Envelope is a protocol message as exchanged through the message collection.
// Content is the sealed, opaque body.
type Envelope struct {
	Version             string
	SourceClientID      ClientID
	SourceKeyID         KeyID
	SourceKey           X25519Public // first message of a session only
	DestinationClientID ClientID
	DestinationKeyID    KeyID
	Sequence            int
	Type                MessageType
	Content             string
}

// Message is an envelope persisted locally against its session.
type Message struct {
	ID        int64
	SessionID SessionID
	Envelope
	Read       bool
	Deleted    bool
	ModifiedAt time.Time
}

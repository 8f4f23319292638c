package domain

import (
	interfaces "syncpair/internal/domain/interfaces"
	types "syncpair/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	ClientID      = types.ClientID
	KeyID         = types.KeyID
	SessionID     = types.SessionID
	Fingerprint   = types.Fingerprint
	X25519Public  = types.X25519Public
	X25519Private = types.X25519Private
	KeyPair       = types.KeyPair
	KeyStatus     = types.KeyStatus
	EphemeralKey  = types.EphemeralKey
	ClientStatus  = types.ClientStatus
	Client        = types.Client
	SessionState  = types.SessionState
	Role          = types.Role
	Session       = types.Session
	MessageType   = types.MessageType
	Envelope      = types.Envelope
	Message       = types.Message
	Content       = types.Content
	AuthVerifier  = types.AuthVerifier
	AuthRequest   = types.AuthRequest
	AuthResponse  = types.AuthResponse
	AuthStatus    = types.AuthStatus
	Object        = types.Object
	Listing       = types.Listing
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	ClientStore     = interfaces.ClientStore
	KeyStore        = interfaces.KeyStore
	SessionStore    = interfaces.SessionStore
	MessageStore    = interfaces.MessageStore
	PropertyStore   = interfaces.PropertyStore
	Store           = interfaces.Store
	ObjectStore     = interfaces.ObjectStore
	IdentityService = interfaces.IdentityService
	PreKeyService   = interfaces.PreKeyService
	MessageService  = interfaces.MessageService
	MessageHandler  = interfaces.MessageHandler
)

// Constants re-exported from the types subpackage.
const (
	ProtocolVersion = types.ProtocolVersion

	KeyPublished   = types.KeyPublished
	KeyProvisioned = types.KeyProvisioned
	KeyDeleted     = types.KeyDeleted

	ClientPending    = types.ClientPending
	ClientAuthorised = types.ClientAuthorised
	AuthLevelAll     = types.AuthLevelAll

	StateRequestPending  = types.StateRequestPending
	StateRequestSent     = types.StateRequestSent
	StateResponsePending = types.StateResponsePending
	StateResponseSent    = types.StateResponseSent
	StateMessageSent     = types.StateMessageSent
	StateClosed          = types.StateClosed

	RoleInitiator = types.RoleInitiator
	RoleResponder = types.RoleResponder

	TypeAuthRequest  = types.TypeAuthRequest
	TypeAuthResponse = types.TypeAuthResponse

	SequenceRequest  = types.SequenceRequest
	SequenceResponse = types.SequenceResponse

	AuthOkay = types.AuthOkay
	AuthFail = types.AuthFail

	PropAuthStatus = types.PropAuthStatus
	PropAuthCode   = types.PropAuthCode
	PropAuthBy     = types.PropAuthBy
	PropSyncKey    = types.PropSyncKey
	PropPassword   = types.PropPassword
	PropLastPoll   = types.PropLastPoll
)

// Helpers re-exported from the types subpackage.
var (
	NewSessionID      = types.NewSessionID
	ParseX25519Public = types.ParseX25519Public
)

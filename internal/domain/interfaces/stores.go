package interfaces

import (
	"context"

	domaintypes "syncpair/internal/domain/types"
)

// ClientStore persists device identities together with their key lists.
type ClientStore interface {
	// SaveClient upserts the client and replaces its key list in one
	// transaction.
	SaveClient(ctx context.Context, client domaintypes.Client) error
	LoadClient(ctx context.Context, id domaintypes.ClientID) (domaintypes.Client, bool, error)
	LoadSelf(ctx context.Context) (domaintypes.Client, bool, error)
	ListClients(ctx context.Context) ([]domaintypes.Client, error)
	SetClientStatus(ctx context.Context, id domaintypes.ClientID, status domaintypes.ClientStatus) error
}

// KeyStore manages ephemeral pre-keys.
type KeyStore interface {
	AddKeys(ctx context.Context, keys []domaintypes.EphemeralKey) error
	LoadKey(ctx context.Context, id domaintypes.KeyID) (domaintypes.EphemeralKey, bool, error)
	ListKeys(ctx context.Context, owner domaintypes.ClientID, status domaintypes.KeyStatus) ([]domaintypes.EphemeralKey, error)
	// ProvisionKey moves a key from published to provisioned. It fails with
	// domain.ErrAlreadyProvisioned when the key is not published.
	ProvisionKey(ctx context.Context, id domaintypes.KeyID) error
}

// SessionStore persists sessions. Creation consumes the named keys in the
// same transaction.
type SessionStore interface {
	CreateSession(ctx context.Context, session domaintypes.Session, consume ...domaintypes.KeyID) error
	// CreateIncomingSession consumes the session's own key, inserts the
	// session and records the first message atomically.
	CreateIncomingSession(ctx context.Context, session domaintypes.Session, first domaintypes.Message) error
	LoadSession(ctx context.Context, id domaintypes.SessionID) (domaintypes.Session, bool, error)
	UpdateSession(ctx context.Context, session domaintypes.Session) error
	ListSessions(ctx context.Context, state domaintypes.SessionState) ([]domaintypes.Session, error)
}

// MessageStore persists envelopes against their sessions.
type MessageStore interface {
	// RecordMessage inserts msg and writes the session's state and sequences
	// in one transaction.
	RecordMessage(ctx context.Context, msg domaintypes.Message, session domaintypes.Session) error
	LoadMessage(ctx context.Context, session domaintypes.SessionID, sequence int) (domaintypes.Message, bool, error)
	ListMessages(ctx context.Context, session domaintypes.SessionID, includeDeleted bool) ([]domaintypes.Message, error)
	MarkMessageRead(ctx context.Context, id int64) error
	DeleteMessage(ctx context.Context, id int64) error
}

// PropertyStore is the scalar key/value store. Secret values are sealed at
// rest.
type PropertyStore interface {
	GetProperty(ctx context.Context, key string) (string, bool, error)
	SetProperty(ctx context.Context, key, value string) error
	GetSecret(ctx context.Context, key string) (string, bool, error)
	SetSecret(ctx context.Context, key, value string) error
	DeleteProperty(ctx context.Context, key string) error
}

// Store is the whole local persistence layer.
type Store interface {
	ClientStore
	KeyStore
	SessionStore
	MessageStore
	PropertyStore
	Reset(ctx context.Context) error
	Close() error
}

package interfaces

import (
	"context"

	domaintypes "syncpair/internal/domain/types"
)

// IdentityService creates and loads the local device identity.
type IdentityService interface {
	LoadSelf(ctx context.Context) (domaintypes.Client, error)
	CreateSelf(ctx context.Context, name string, authorised bool) (domaintypes.Client, error)
	Fingerprint(ctx context.Context) (domaintypes.Fingerprint, error)
}

// PreKeyService manages the pool of one-time ephemeral keys.
type PreKeyService interface {
	EnsurePublishedKeyPool(ctx context.Context, client domaintypes.Client) (domaintypes.Client, int, error)
	ConsumeKey(ctx context.Context, id domaintypes.KeyID) error
	PickRandomPublishedKey(ctx context.Context, other domaintypes.Client) (domaintypes.EphemeralKey, error)
	SessionKey(ctx context.Context, self domaintypes.Client) (domaintypes.EphemeralKey, error)
}

// MessageHandler processes one incoming envelope addressed to this device.
// It returns domain.ErrDuplicate for an envelope it has seen before.
type MessageHandler func(ctx context.Context, env domaintypes.Envelope) error

// MessageService maps clients and envelopes onto the remote object store.
type MessageService interface {
	PublishMeta(ctx context.Context) error
	CheckMeta(ctx context.Context) error
	PublishClient(ctx context.Context, client domaintypes.Client) error
	SyncClients(ctx context.Context, self domaintypes.Client) ([]domaintypes.Client, error)
	Send(ctx context.Context, env domaintypes.Envelope) error
	CheckMessages(ctx context.Context, self domaintypes.Client, handle MessageHandler) (int, error)
}

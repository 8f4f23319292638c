package app

import (
	"context"

	"github.com/rs/zerolog"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
	clientauthsvc "syncpair/internal/services/clientauth"
	identitysvc "syncpair/internal/services/identity"
	messagesvc "syncpair/internal/services/message"
	prekeysvc "syncpair/internal/services/prekey"
	sessionsvc "syncpair/internal/services/session"
	"syncpair/internal/storage"
	"syncpair/internal/store"
)

// Wire bundles all stores, services and clients for the CLI.
type Wire struct {
	Log        zerolog.Logger
	Store      *store.SQLStore
	Objects    domain.ObjectStore
	Identity   *identitysvc.Service
	PreKeys    *prekeysvc.Service
	Sessions   *sessionsvc.Service
	Messages   *messagesvc.Service
	ClientAuth *clientauthsvc.Service
}

// NewWire constructs the dependency graph from cfg. A nil objects uses the
// HTTP object store at cfg.Storage.
func NewWire(ctx context.Context, cfg Config, log zerolog.Logger, objects domain.ObjectStore) (*Wire, error) {
	st, err := store.Open(ctx, cfg.DB, store.Options{Passphrase: cfg.Passphrase, ScryptN: cfg.ScryptN})
	if err != nil {
		return nil, err
	}

	if objects == nil {
		hc := storage.NewHTTP(cfg.Storage, cfg.Token)
		hc.HTTP = cfg.httpClient()
		objects = hc
	}

	p := crypto.NewProvider(nil)
	ids := identitysvc.New(st, p, log.With().Str("svc", "identity").Logger())
	keys := prekeysvc.New(st, p, log.With().Str("svc", "prekey").Logger(), cfg.PoolSize)
	sessions := sessionsvc.New(st, keys, log.With().Str("svc", "session").Logger())
	messages := messagesvc.New(objects, st, st, log.With().Str("svc", "message").Logger())
	auth := clientauthsvc.New(st, ids, keys, sessions, messages, p, log.With().Str("svc", "clientauth").Logger())

	return &Wire{
		Log:        log,
		Store:      st,
		Objects:    objects,
		Identity:   ids,
		PreKeys:    keys,
		Sessions:   sessions,
		Messages:   messages,
		ClientAuth: auth,
	}, nil
}

// Close releases the database.
func (w *Wire) Close() error { return w.Store.Close() }

package clientauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
	"syncpair/internal/services/identity"
	"syncpair/internal/services/prekey"
	"syncpair/internal/services/session"
)

// Values of the authstatus property.
const (
	StatusRequested  = "requested"
	StatusAuthorised = "authorised"
)

// Service orchestrates the pairing handshake for the local device.
type Service struct {
	store    domain.Store
	identity *identity.Service
	prekeys  *prekey.Service
	sessions *session.Service
	messages domain.MessageService
	crypto   *crypto.Provider
	log      zerolog.Logger
}

// New wires the handshake over the lower-level services.
func New(
	store domain.Store,
	ids *identity.Service,
	prekeys *prekey.Service,
	sessions *session.Service,
	messages domain.MessageService,
	p *crypto.Provider,
	log zerolog.Logger,
) *Service {
	return &Service{
		store:    store,
		identity: ids,
		prekeys:  prekeys,
		sessions: sessions,
		messages: messages,
		crypto:   p,
		log:      log,
	}
}

// EnrolOptions describes a new local device.
type EnrolOptions struct {
	Name string
	// Authorised marks the first device of an account, which already holds
	// the password and sync key.
	Authorised bool
	Password   string
	SyncKey    string
}

// Enrol creates the local identity, stores the account secrets it was given
// and publishes the device so peers can find it.
func (s *Service) Enrol(ctx context.Context, opts EnrolOptions) (domain.Client, error) {
	if opts.Authorised && (opts.Password == "" || opts.SyncKey == "") {
		return domain.Client{}, errors.New("an authorised device needs the account password and sync key")
	}
	if err := s.messages.CheckMeta(ctx); err != nil {
		return domain.Client{}, err
	}
	self, err := s.identity.CreateSelf(ctx, opts.Name, opts.Authorised)
	if err != nil {
		return domain.Client{}, err
	}
	if opts.Password != "" {
		if err := s.store.SetSecret(ctx, domain.PropPassword, opts.Password); err != nil {
			return domain.Client{}, err
		}
	}
	if opts.Authorised {
		if err := s.store.SetSecret(ctx, domain.PropSyncKey, opts.SyncKey); err != nil {
			return domain.Client{}, err
		}
		if err := s.store.SetProperty(ctx, domain.PropAuthStatus, StatusAuthorised); err != nil {
			return domain.Client{}, err
		}
	}
	return s.publishSelf(ctx, self)
}

// publishSelf tops up the key pool and publishes the local record.
func (s *Service) publishSelf(ctx context.Context, self domain.Client) (domain.Client, error) {
	self, added, err := s.prekeys.EnsurePublishedKeyPool(ctx, self)
	if err != nil {
		return self, err
	}
	if err := s.messages.PublishClient(ctx, self); err != nil {
		return self, err
	}
	if added > 0 {
		s.log.Info().Int("added", added).Msg("published new pre-keys")
	}
	return self, nil
}

// AuthoriseResult reports what AuthoriseClient did.
type AuthoriseResult struct {
	AlreadyAuthorised bool
	// AuthCode is what the user must enter on an authorised device.
	AuthCode string
	// Sent is the number of peers a request went to.
	Sent int
}

// AuthoriseClient asks every authorised peer to authorise this device.
// password is the account password; it never leaves the device.
func (s *Service) AuthoriseClient(ctx context.Context, password string) (AuthoriseResult, error) {
	self, err := s.identity.LoadSelf(ctx)
	if err != nil {
		return AuthoriseResult{}, err
	}
	if err := s.messages.CheckMeta(ctx); err != nil {
		return AuthoriseResult{}, err
	}
	if self.Authorised() {
		if _, err := s.publishSelf(ctx, self); err != nil {
			return AuthoriseResult{}, err
		}
		return AuthoriseResult{AlreadyAuthorised: true}, nil
	}
	if password == "" {
		return AuthoriseResult{}, errors.New("account password is required")
	}

	code, err := NewAuthCode(s.crypto)
	if err != nil {
		return AuthoriseResult{}, err
	}
	if err := s.store.SetProperty(ctx, domain.PropAuthCode, code); err != nil {
		return AuthoriseResult{}, err
	}
	if err := s.store.SetSecret(ctx, domain.PropPassword, password); err != nil {
		return AuthoriseResult{}, err
	}
	// Responders need our identity key before they can open a request.
	if err := s.messages.PublishClient(ctx, self); err != nil {
		return AuthoriseResult{}, err
	}

	peers, err := s.messages.SyncClients(ctx, self)
	if err != nil {
		return AuthoriseResult{}, err
	}
	res := AuthoriseResult{AuthCode: code}
	for _, peer := range peers {
		if !peer.Authorised() {
			continue
		}
		err := s.sendRequest(ctx, self, peer, code, password)
		if errors.Is(err, domain.ErrNoPublishedKeys) {
			s.log.Warn().Str("peer", peer.Name).Msg("peer has no published keys, skipping")
			continue
		}
		if err != nil {
			return res, fmt.Errorf("request to %s: %w", peer.Name, err)
		}
		res.Sent++
	}
	if res.Sent == 0 {
		s.log.Warn().Msg("no authorised peers reachable; poll again once one has published keys")
	}
	if err := s.store.SetProperty(ctx, domain.PropAuthStatus, StatusRequested); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Service) sendRequest(ctx context.Context, self, peer domain.Client, code, password string) error {
	sess, err := s.sessions.CreateOutgoing(ctx, self, peer)
	if err != nil {
		return err
	}
	own, ok, err := s.store.LoadKey(ctx, sess.OwnEphemeralKeyID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("own key %s: %w", sess.OwnEphemeralKeyID, domain.ErrNotFound)
	}

	keys, err := s.sessions.Keys(ctx, self, sess)
	if err != nil {
		return err
	}
	defer keys.Wipe()

	verifier, err := newVerifier(s.crypto, code, password)
	if err != nil {
		return err
	}
	sealed, err := sealContent(s.crypto, domain.AuthRequest{ClientID: self.ID, Name: self.Name, Auth: verifier}, keys)
	if err != nil {
		return err
	}

	env := domain.Envelope{
		Version:             domain.ProtocolVersion,
		SourceClientID:      self.ID,
		SourceKeyID:         own.ID,
		SourceKey:           own.Public,
		DestinationClientID: peer.ID,
		DestinationKeyID:    sess.OtherEphemeralKeyID,
		Sequence:            domain.SequenceRequest,
		Type:                domain.TypeAuthRequest,
		Content:             sealed,
	}
	if err := s.messages.Send(ctx, env); err != nil {
		return err
	}
	if _, err := s.sessions.Record(ctx, sess, domain.Message{Envelope: env, Read: true}, domain.StateRequestSent, true); err != nil {
		return err
	}
	s.log.Info().Str("peer", peer.Name).Str("session", sess.ID.String()).Msg("authorisation requested")
	return nil
}

// PollResult summarises one poll.
type PollResult struct {
	Handled int
	Peers   int
}

// Poll syncs peers, republishes the local record and processes new
// messages.
func (s *Service) Poll(ctx context.Context) (PollResult, error) {
	self, err := s.identity.LoadSelf(ctx)
	if err != nil {
		return PollResult{}, err
	}
	if err := s.messages.CheckMeta(ctx); err != nil {
		return PollResult{}, err
	}
	if self.Authorised() {
		if self, err = s.publishSelf(ctx, self); err != nil {
			return PollResult{}, err
		}
	}
	peers, err := s.messages.SyncClients(ctx, self)
	if err != nil {
		return PollResult{}, err
	}
	n, err := s.messages.CheckMessages(ctx, self, func(ctx context.Context, env domain.Envelope) error {
		return s.handle(ctx, self, env)
	})
	if err != nil {
		return PollResult{}, err
	}
	return PollResult{Handled: n, Peers: len(peers)}, nil
}

// handle processes one envelope addressed to self. Envelopes already stored
// locally are reported as domain.ErrDuplicate without being processed again.
func (s *Service) handle(ctx context.Context, self domain.Client, env domain.Envelope) error {
	role := domain.RoleInitiator
	if env.Sequence == domain.SequenceRequest {
		role = domain.RoleResponder
	}
	id := domain.NewSessionID(role, env.DestinationKeyID, env.SourceKeyID)
	if _, ok, err := s.store.LoadMessage(ctx, id, env.Sequence); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("session %s #%d: %w", id, env.Sequence, domain.ErrDuplicate)
	}

	var (
		sess domain.Session
		err  error
	)
	if env.Sequence == domain.SequenceRequest && env.Type == domain.TypeAuthRequest {
		sess, err = s.openIncoming(ctx, self, env)
	} else {
		sess, err = s.sessions.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("no session %s: %w", id, domain.ErrSessionMismatch)
		}
		if err == nil {
			sess, err = s.sessions.Validate(ctx, sess, env)
		}
	}
	if err != nil {
		return err
	}

	keys, err := s.sessions.Keys(ctx, self, sess)
	if err != nil {
		return err
	}
	defer keys.Wipe()
	content, err := openContent(env, keys)
	if err != nil {
		_, _ = s.sessions.Close(ctx, sess)
		return err
	}

	switch c := content.(type) {
	case domain.AuthRequest:
		return s.processIncomingRequest(ctx, self, sess, c)
	case domain.AuthResponse:
		return s.processResponse(ctx, self, sess, env, c)
	default:
		return fmt.Errorf("unhandled content %T: %w", content, domain.ErrFormat)
	}
}

// Status is a snapshot of the local pairing state.
type Status struct {
	Self        domain.Client
	Fingerprint domain.Fingerprint
	AuthStatus  string
	AuthBy      string
	AuthCode    string
	HasSyncKey  bool
	LastPoll    string
	Sessions    map[domain.SessionState]int
}

// Status reports the local identity and handshake properties.
func (s *Service) Status(ctx context.Context) (Status, error) {
	self, err := s.identity.LoadSelf(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Self: self, Fingerprint: crypto.Fingerprint(self.IdentityKey), Sessions: map[domain.SessionState]int{}}
	for key, dst := range map[string]*string{
		domain.PropAuthStatus: &st.AuthStatus,
		domain.PropAuthBy:     &st.AuthBy,
		domain.PropAuthCode:   &st.AuthCode,
		domain.PropLastPoll:   &st.LastPoll,
	} {
		if *dst, _, err = s.store.GetProperty(ctx, key); err != nil {
			return Status{}, err
		}
	}
	if _, st.HasSyncKey, err = s.store.GetSecret(ctx, domain.PropSyncKey); err != nil {
		return Status{}, err
	}
	all, err := s.sessions.List(ctx, "")
	if err != nil {
		return Status{}, err
	}
	for _, sess := range all {
		st.Sessions[sess.State]++
	}
	return st, nil
}

// SyncKey returns the account sync key once this device holds it.
func (s *Service) SyncKey(ctx context.Context) (string, bool, error) {
	return s.store.GetSecret(ctx, domain.PropSyncKey)
}

// Reset wipes all local state.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.log.Info().Msg("local state reset")
	return nil
}

package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"syncpair/internal/domain"
	"syncpair/internal/protocol/threedhe"
)

// PreKeys is the subset of the pre-key service sessions need.
type PreKeys interface {
	SessionKey(ctx context.Context, self domain.Client) (domain.EphemeralKey, error)
	PickRandomPublishedKey(ctx context.Context, other domain.Client) (domain.EphemeralKey, error)
	Private(ctx context.Context, id domain.KeyID) (domain.X25519Private, error)
}

// Store is the persistence the session service writes through.
type Store interface {
	domain.SessionStore
	domain.MessageStore
}

// Service creates, advances and validates sessions.
type Service struct {
	store   Store
	prekeys PreKeys
	log     zerolog.Logger
}

// New constructs a session service.
func New(store Store, prekeys PreKeys, log zerolog.Logger) *Service {
	return &Service{store: store, prekeys: prekeys, log: log}
}

// transitions lists the legal moves of the state machine.
var transitions = map[domain.SessionState][]domain.SessionState{
	domain.StateRequestPending:  {domain.StateRequestSent, domain.StateClosed},
	domain.StateRequestSent:     {domain.StateClosed},
	domain.StateResponsePending: {domain.StateResponseSent, domain.StateClosed},
	domain.StateResponseSent:    {domain.StateClosed},
	domain.StateMessageSent:     {domain.StateClosed},
}

// Allowed reports whether a session may move from one state to another.
func Allowed(from, to domain.SessionState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CreateOutgoing opens an initiator session from self to other. It picks one
// of other's published keys and an own key, consumes whichever of them are
// still published and persists the session as requestpending, all in one
// transaction.
func (s *Service) CreateOutgoing(ctx context.Context, self, other domain.Client) (domain.Session, error) {
	own, err := s.prekeys.SessionKey(ctx, self)
	if err != nil {
		return domain.Session{}, err
	}
	theirs, err := s.prekeys.PickRandomPublishedKey(ctx, other)
	if err != nil {
		return domain.Session{}, err
	}

	consume := []domain.KeyID{theirs.ID}
	if own.Status == domain.KeyPublished {
		consume = append(consume, own.ID)
	}
	sess := domain.Session{
		ID:                  domain.NewSessionID(domain.RoleInitiator, own.ID, theirs.ID),
		Role:                domain.RoleInitiator,
		OwnEphemeralKeyID:   own.ID,
		OtherClientID:       other.ID,
		OtherIdentityKey:    other.IdentityKey,
		OtherEphemeralKeyID: theirs.ID,
		OtherEphemeralKey:   theirs.Public,
		State:               domain.StateRequestPending,
	}
	if err := s.store.CreateSession(ctx, sess, consume...); err != nil {
		return domain.Session{}, err
	}
	s.log.Debug().Str("session", sess.ID.String()).Str("other", other.ID.String()).Msg("outgoing session created")
	return sess, nil
}

// CreateIncoming opens a responder session for the first message of a pair.
// The own key named by the envelope is consumed and the message stored in the
// same transaction, so a replayed request fails with
// domain.ErrAlreadyProvisioned.
func (s *Service) CreateIncoming(ctx context.Context, self, other domain.Client, env domain.Envelope) (domain.Session, error) {
	if env.Sequence != domain.SequenceRequest {
		return domain.Session{}, fmt.Errorf("session opened by sequence %d: %w", env.Sequence, domain.ErrInvalidTransition)
	}
	if env.SourceKey.IsZero() {
		return domain.Session{}, fmt.Errorf("first message carries no source key: %w", domain.ErrFormat)
	}
	if env.SourceClientID != other.ID || env.DestinationClientID != self.ID {
		return domain.Session{}, fmt.Errorf("envelope %s->%s for %s->%s: %w",
			env.SourceClientID, env.DestinationClientID, other.ID, self.ID, domain.ErrSessionMismatch)
	}

	sess := domain.Session{
		ID:                  domain.NewSessionID(domain.RoleResponder, env.DestinationKeyID, env.SourceKeyID),
		Role:                domain.RoleResponder,
		OwnEphemeralKeyID:   env.DestinationKeyID,
		OtherClientID:       other.ID,
		OtherIdentityKey:    other.IdentityKey,
		OtherEphemeralKeyID: env.SourceKeyID,
		OtherEphemeralKey:   env.SourceKey,
		OtherSequence:       env.Sequence,
		State:               domain.StateResponsePending,
	}
	if err := s.store.CreateIncomingSession(ctx, sess, domain.Message{Envelope: env}); err != nil {
		return domain.Session{}, err
	}
	s.log.Debug().Str("session", sess.ID.String()).Str("other", other.ID.String()).Msg("incoming session created")
	return sess, nil
}

// Get loads a session or returns domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	sess, ok, err := s.store.LoadSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return sess, nil
}

// List returns the sessions in state.
func (s *Service) List(ctx context.Context, state domain.SessionState) ([]domain.Session, error) {
	return s.store.ListSessions(ctx, state)
}

// Transition moves sess to state and persists it. An illegal move closes the
// session instead and returns domain.ErrInvalidTransition.
func (s *Service) Transition(ctx context.Context, sess domain.Session, to domain.SessionState) (domain.Session, error) {
	if !Allowed(sess.State, to) {
		return s.reject(ctx, sess, fmt.Errorf("session %s: %s -> %s: %w", sess.ID, sess.State, to, domain.ErrInvalidTransition))
	}
	sess.State = to
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// Close moves sess to closed. Closing a closed session is a no-op.
func (s *Service) Close(ctx context.Context, sess domain.Session) (domain.Session, error) {
	if sess.Closed() {
		return sess, nil
	}
	return s.Transition(ctx, sess, domain.StateClosed)
}

// Record stores msg against sess and moves the session to state in one
// transaction. Sequence counters follow the message direction: sent messages
// advance OwnSequence, received ones OtherSequence.
func (s *Service) Record(ctx context.Context, sess domain.Session, msg domain.Message, to domain.SessionState, sent bool) (domain.Session, error) {
	if !Allowed(sess.State, to) {
		return s.reject(ctx, sess, fmt.Errorf("session %s: %s -> %s: %w", sess.ID, sess.State, to, domain.ErrInvalidTransition))
	}
	if sent {
		sess.OwnSequence = msg.Sequence
	} else {
		sess.OtherSequence = msg.Sequence
	}
	sess.State = to
	if err := s.store.RecordMessage(ctx, msg, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// Validate checks that env belongs to sess: it must be addressed to our key
// and come from the other client's key with the next sequence number. A
// mismatch closes the session and returns domain.ErrSessionMismatch.
func (s *Service) Validate(ctx context.Context, sess domain.Session, env domain.Envelope) (domain.Session, error) {
	if sess.Closed() {
		return sess, fmt.Errorf("session %s is closed: %w", sess.ID, domain.ErrInvalidTransition)
	}
	next := max(sess.OwnSequence, sess.OtherSequence) + 1
	switch {
	case env.DestinationKeyID != sess.OwnEphemeralKeyID,
		env.SourceClientID != sess.OtherClientID,
		env.SourceKeyID != sess.OtherEphemeralKeyID:
		return s.reject(ctx, sess, fmt.Errorf("session %s: envelope keys do not match: %w", sess.ID, domain.ErrSessionMismatch))
	case env.Sequence != next:
		return s.reject(ctx, sess, fmt.Errorf("session %s: sequence %d, want %d: %w", sess.ID, env.Sequence, next, domain.ErrSessionMismatch))
	}
	return sess, nil
}

// Keys derives the 3DHE session keys for sess from the local identity and
// the session's own ephemeral key. Callers wipe the result when done.
func (s *Service) Keys(ctx context.Context, self domain.Client, sess domain.Session) (threedhe.Keys, error) {
	eph, err := s.prekeys.Private(ctx, sess.OwnEphemeralKeyID)
	if err != nil {
		return threedhe.Keys{}, err
	}
	return threedhe.Derive(sess.Role, self.IdentityPrivate, eph, sess.OtherIdentityKey, sess.OtherEphemeralKey)
}

// reject closes sess and returns cause. Failing to persist the close is
// reported alongside cause.
func (s *Service) reject(ctx context.Context, sess domain.Session, cause error) (domain.Session, error) {
	if sess.Closed() {
		return sess, cause
	}
	sess.State = domain.StateClosed
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return sess, fmt.Errorf("%w (close failed: %v)", cause, err)
	}
	s.log.Warn().Err(cause).Str("session", sess.ID.String()).Msg("session closed")
	return sess, cause
}

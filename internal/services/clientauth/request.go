package clientauth

import (
	"context"
	"fmt"
	"time"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
)

// openIncoming creates the responder session for a first message. The
// sender must be a known client; its record arrives with the same poll.
func (s *Service) openIncoming(ctx context.Context, self domain.Client, env domain.Envelope) (domain.Session, error) {
	other, ok, err := s.store.LoadClient(ctx, env.SourceClientID)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		// Not permanent: the record may not have been published yet.
		return domain.Session{}, fmt.Errorf("request from unknown client %s: %w", env.SourceClientID, domain.ErrNotFound)
	}
	return s.sessions.CreateIncoming(ctx, self, other, env)
}

// processIncomingRequest handles a decrypted clientauthrequest. The request
// waits in responsepending for a human decision unless there is nothing to
// decide.
func (s *Service) processIncomingRequest(ctx context.Context, self domain.Client, sess domain.Session, req domain.AuthRequest) error {
	if sess.Role != domain.RoleResponder || sess.State != domain.StateResponsePending {
		_, err := s.sessions.Close(ctx, sess)
		if err != nil {
			return err
		}
		return fmt.Errorf("request on session %s in %s: %w", sess.ID, sess.State, domain.ErrInvalidTransition)
	}
	if req.ClientID != sess.OtherClientID {
		if _, err := s.sessions.Close(ctx, sess); err != nil {
			return err
		}
		return fmt.Errorf("request names client %s on session with %s: %w", req.ClientID, sess.OtherClientID, domain.ErrSessionMismatch)
	}

	msg, ok, err := s.store.LoadMessage(ctx, sess.ID, domain.SequenceRequest)
	if err != nil {
		return err
	}
	if ok {
		if err := s.store.MarkMessageRead(ctx, msg.ID); err != nil {
			return err
		}
	}

	other, _, err := s.store.LoadClient(ctx, sess.OtherClientID)
	if err != nil {
		return err
	}
	log := s.log.With().Str("session", sess.ID.String()).Str("requester", req.Name).Logger()
	switch {
	case other.Status != domain.ClientPending:
		log.Info().Msg("requester is not pending, closing")
		_, err = s.sessions.Close(ctx, sess)
		return err
	case !self.Authorised():
		log.Info().Msg("cannot vouch while unauthorised, closing")
		_, err = s.sessions.Close(ctx, sess)
		return err
	}
	log.Info().Msg("authorisation request pending approval")
	return nil
}

// PendingRequest is a request awaiting a human decision.
type PendingRequest struct {
	SessionID   domain.SessionID
	ClientID    domain.ClientID
	Name        string
	Fingerprint domain.Fingerprint
	Received    time.Time
}

// PendingRequests lists requests waiting for approve or reject.
func (s *Service) PendingRequests(ctx context.Context) ([]PendingRequest, error) {
	sessions, err := s.sessions.List(ctx, domain.StateResponsePending)
	if err != nil {
		return nil, err
	}
	out := make([]PendingRequest, 0, len(sessions))
	for _, sess := range sessions {
		p := PendingRequest{SessionID: sess.ID, ClientID: sess.OtherClientID, Received: sess.ModifiedAt}
		if c, ok, err := s.store.LoadClient(ctx, sess.OtherClientID); err != nil {
			return nil, err
		} else if ok {
			p.Name = c.Name
		}
		p.Fingerprint = crypto.Fingerprint(sess.OtherIdentityKey)
		out = append(out, p)
	}
	return out, nil
}

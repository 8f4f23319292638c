package clientauth

import (
	"context"
	"errors"
	"fmt"

	"syncpair/internal/domain"
	"syncpair/internal/protocol/threedhe"
)

// SendClientAuthResponse answers a pending request. The response is okay
// only when approve is set and authCode, together with the account password
// held here, reproduces the requester's verifier; anything else is a fail
// without the sync key. It returns the status that was sent.
func (s *Service) SendClientAuthResponse(ctx context.Context, id domain.SessionID, approve bool, authCode string) (domain.AuthStatus, error) {
	self, err := s.identity.LoadSelf(ctx)
	if err != nil {
		return "", err
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if sess.Role != domain.RoleResponder || sess.State != domain.StateResponsePending {
		return "", fmt.Errorf("session %s is %s: %w", id, sess.State, domain.ErrInvalidTransition)
	}
	msg, ok, err := s.store.LoadMessage(ctx, sess.ID, domain.SequenceRequest)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("request for session %s: %w", id, domain.ErrNotFound)
	}

	keys, err := s.sessions.Keys(ctx, self, sess)
	if err != nil {
		return "", err
	}
	defer keys.Wipe()
	content, err := openContent(msg.Envelope, keys)
	if err != nil {
		return "", err
	}
	req, ok := content.(domain.AuthRequest)
	if !ok {
		return "", fmt.Errorf("session %s opened by %T: %w", id, content, domain.ErrFormat)
	}

	resp := domain.AuthResponse{ClientID: self.ID, Name: self.Name, Status: domain.AuthFail, Message: "rejected"}
	if approve {
		password, ok, err := s.store.GetSecret(ctx, domain.PropPassword)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errors.New("no account password stored on this device")
		}
		if verify(req.Auth, NormaliseAuthCode(authCode), password) {
			syncKey, ok, err := s.store.GetSecret(ctx, domain.PropSyncKey)
			if err != nil {
				return "", err
			}
			if !ok || syncKey == "" {
				return "", errors.New("no sync key stored on this device")
			}
			resp.Status, resp.Message, resp.SyncKey = domain.AuthOkay, "authorised", syncKey
		} else {
			resp.Message = "auth code mismatch"
			s.log.Warn().Str("session", id.String()).Str("requester", req.Name).Msg("auth code does not match request")
		}
	}

	env, err := s.sendResponse(ctx, self, sess, keys, resp)
	if err != nil {
		return "", err
	}
	if sess, err = s.sessions.Record(ctx, sess, domain.Message{Envelope: env, Read: true}, domain.StateResponseSent, true); err != nil {
		return "", err
	}
	if _, err := s.sessions.Close(ctx, sess); err != nil {
		return "", err
	}
	s.log.Info().Str("session", id.String()).Str("requester", req.Name).Str("status", string(resp.Status)).Msg("response sent")
	return resp.Status, nil
}

// sendResponse seals resp for the requester and puts it in the object store.
func (s *Service) sendResponse(ctx context.Context, self domain.Client, sess domain.Session, keys threedhe.Keys, resp domain.AuthResponse) (domain.Envelope, error) {
	sealed, err := sealContent(s.crypto, resp, keys)
	if err != nil {
		return domain.Envelope{}, err
	}
	env := domain.Envelope{
		Version:             domain.ProtocolVersion,
		SourceClientID:      self.ID,
		SourceKeyID:         sess.OwnEphemeralKeyID,
		DestinationClientID: sess.OtherClientID,
		DestinationKeyID:    sess.OtherEphemeralKeyID,
		Sequence:            domain.SequenceResponse,
		Type:                domain.TypeAuthResponse,
		Content:             sealed,
	}
	return env, s.messages.Send(ctx, env)
}

// processResponse handles a decrypted clientauthresponse on an initiator
// session. The message is recorded and the session closed whatever the
// outcome; only a well-formed okay adopts the sync key.
func (s *Service) processResponse(ctx context.Context, self domain.Client, sess domain.Session, env domain.Envelope, resp domain.AuthResponse) error {
	if sess.Role != domain.RoleInitiator {
		_, err := s.sessions.Close(ctx, sess)
		if err != nil {
			return err
		}
		return fmt.Errorf("response on responder session %s: %w", sess.ID, domain.ErrInvalidTransition)
	}

	var invalid error
	switch {
	case resp.ClientID != sess.OtherClientID:
		invalid = fmt.Errorf("response names client %s on session with %s: %w", resp.ClientID, sess.OtherClientID, domain.ErrSessionMismatch)
	case resp.Status != domain.AuthOkay && resp.Status != domain.AuthFail:
		invalid = fmt.Errorf("response status %q: %w", resp.Status, domain.ErrFormat)
	case resp.Status == domain.AuthOkay && resp.SyncKey == "":
		invalid = fmt.Errorf("okay response without sync key: %w", domain.ErrFormat)
	}

	log := s.log.With().Str("session", sess.ID.String()).Str("responder", resp.Name).Logger()
	if invalid == nil && resp.Status == domain.AuthOkay {
		if err := s.adopt(ctx, self, resp); err != nil {
			return err
		}
		log.Info().Msg("device authorised")
	} else if invalid == nil {
		log.Warn().Str("message", resp.Message).Msg("authorisation refused")
	}

	if _, err := s.sessions.Record(ctx, sess, domain.Message{Envelope: env, Read: true}, domain.StateClosed, false); err != nil {
		return err
	}
	return invalid
}

// adopt stores the sync key and marks the local device authorised.
func (s *Service) adopt(ctx context.Context, self domain.Client, resp domain.AuthResponse) error {
	if err := s.store.SetSecret(ctx, domain.PropSyncKey, resp.SyncKey); err != nil {
		return err
	}
	if err := s.store.SetProperty(ctx, domain.PropAuthBy, resp.Name); err != nil {
		return err
	}
	if err := s.store.SetProperty(ctx, domain.PropAuthStatus, StatusAuthorised); err != nil {
		return err
	}
	self, err := s.identity.SetStatus(ctx, domain.ClientAuthorised)
	if err != nil {
		return err
	}
	_, err = s.publishSelf(ctx, self)
	return err
}

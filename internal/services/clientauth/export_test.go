package clientauth

import (
	"context"

	"syncpair/internal/domain"
)

// SendRawResponse answers the responder session id with resp exactly as
// given, without checking it or advancing the session.
func (s *Service) SendRawResponse(ctx context.Context, id domain.SessionID, resp domain.AuthResponse) error {
	self, err := s.identity.LoadSelf(ctx)
	if err != nil {
		return err
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	keys, err := s.sessions.Keys(ctx, self, sess)
	if err != nil {
		return err
	}
	defer keys.Wipe()
	_, err = s.sendResponse(ctx, self, sess, keys, resp)
	return err
}

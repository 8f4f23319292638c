package clientauth

import (
	"encoding/json"
	"fmt"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
	"syncpair/internal/protocol/envelope"
	"syncpair/internal/protocol/threedhe"
)

func sealContent(p *crypto.Provider, c domain.Content, keys threedhe.Keys) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return envelope.Seal(p, b, keys)
}

// openContent decrypts env and decodes the body its type announces.
func openContent(env domain.Envelope, keys threedhe.Keys) (domain.Content, error) {
	plaintext, err := envelope.Open(env.Content, keys)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case domain.TypeAuthRequest:
		var req domain.AuthRequest
		if err := json.Unmarshal(plaintext, &req); err != nil {
			return nil, fmt.Errorf("decode request: %w", domain.ErrFormat)
		}
		if req.ClientID == "" || req.Auth.Digest == "" || req.Auth.Salt == "" || req.Auth.InnerSalt == "" {
			return nil, fmt.Errorf("request missing fields: %w", domain.ErrFormat)
		}
		return req, nil
	case domain.TypeAuthResponse:
		var resp domain.AuthResponse
		if err := json.Unmarshal(plaintext, &resp); err != nil {
			return nil, fmt.Errorf("decode response: %w", domain.ErrFormat)
		}
		if resp.ClientID == "" {
			return nil, fmt.Errorf("response missing clientid: %w", domain.ErrFormat)
		}
		return resp, nil
	default:
		return nil, fmt.Errorf("message type %q: %w", env.Type, domain.ErrFormat)
	}
}

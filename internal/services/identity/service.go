package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
)

// Service creates and loads the local identity through a ClientStore.
type Service struct {
	store  domain.ClientStore
	crypto *crypto.Provider
	log    zerolog.Logger
}

// New returns an identity service backed by the given store.
func New(store domain.ClientStore, p *crypto.Provider, log zerolog.Logger) *Service {
	return &Service{store: store, crypto: p, log: log}
}

// LoadSelf returns the local identity or domain.ErrNoIdentity.
func (s *Service) LoadSelf(ctx context.Context) (domain.Client, error) {
	self, ok, err := s.store.LoadSelf(ctx)
	if err != nil {
		return domain.Client{}, err
	}
	if !ok {
		return domain.Client{}, domain.ErrNoIdentity
	}
	return self, nil
}

// CreateSelf generates a fresh identity key pair and stores the local client.
// A device that is created authorised may vouch for others straight away;
// otherwise it starts pending and must request authorisation.
func (s *Service) CreateSelf(ctx context.Context, name string, authorised bool) (domain.Client, error) {
	if _, ok, err := s.store.LoadSelf(ctx); err != nil {
		return domain.Client{}, err
	} else if ok {
		return domain.Client{}, domain.ErrIdentityExists
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Client{}, fmt.Errorf("client name is required")
	}

	id, err := uuid.NewRandomFromReader(s.crypto.Reader())
	if err != nil {
		return domain.Client{}, fmt.Errorf("client id: %w", domain.ErrCrypto)
	}
	kp, err := s.crypto.GenerateKeyPair()
	if err != nil {
		return domain.Client{}, err
	}

	status := domain.ClientPending
	if authorised {
		status = domain.ClientAuthorised
	}
	self := domain.Client{
		ID:              domain.ClientID(id.String()),
		Name:            name,
		IdentityKey:     kp.Public,
		IdentityPrivate: kp.Private,
		Status:          status,
		AuthLevel:       domain.AuthLevelAll,
		Version:         domain.ProtocolVersion,
		Self:            true,
	}
	if err := s.store.SaveClient(ctx, self); err != nil {
		return domain.Client{}, err
	}
	s.log.Info().Str("client", self.ID.String()).Str("status", string(status)).Msg("identity created")
	return self, nil
}

// SetStatus moves the local identity to status and returns the updated record.
func (s *Service) SetStatus(ctx context.Context, status domain.ClientStatus) (domain.Client, error) {
	self, err := s.LoadSelf(ctx)
	if err != nil {
		return domain.Client{}, err
	}
	if self.Status == status {
		return self, nil
	}
	if err := s.store.SetClientStatus(ctx, self.ID, status); err != nil {
		return domain.Client{}, err
	}
	self.Status = status
	return self, nil
}

// Fingerprint returns a short fingerprint of the local identity key for
// out-of-band comparison.
func (s *Service) Fingerprint(ctx context.Context) (domain.Fingerprint, error) {
	self, err := s.LoadSelf(ctx)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(self.IdentityKey), nil
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)

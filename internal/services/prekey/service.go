package prekey

import (
	"context"
	cryptorand "crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
)

// DefaultPoolSize is the number of published keys an authorised device keeps.
const DefaultPoolSize = 10

// Service tops up, hands out and consumes ephemeral keys.
type Service struct {
	keys     domain.KeyStore
	crypto   *crypto.Provider
	log      zerolog.Logger
	poolSize int
}

// New returns a pre-key service. A non-positive poolSize selects
// DefaultPoolSize.
func New(keys domain.KeyStore, p *crypto.Provider, log zerolog.Logger, poolSize int) *Service {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Service{keys: keys, crypto: p, log: log, poolSize: poolSize}
}

// PoolSize reports the configured pool size.
func (s *Service) PoolSize() int { return s.poolSize }

// EnsurePublishedKeyPool tops the client's published keys up to the pool
// size and returns the client with its refreshed key list and the number of
// keys added. Unauthorised clients are returned unchanged.
func (s *Service) EnsurePublishedKeyPool(ctx context.Context, client domain.Client) (domain.Client, int, error) {
	if !client.Authorised() {
		return client, 0, nil
	}
	published, err := s.keys.ListKeys(ctx, client.ID, domain.KeyPublished)
	if err != nil {
		return client, 0, err
	}
	missing := s.poolSize - len(published)
	if missing > 0 {
		fresh := make([]domain.EphemeralKey, 0, missing)
		for i := 0; i < missing; i++ {
			k, err := s.newKey(client.ID, domain.KeyPublished)
			if err != nil {
				return client, 0, err
			}
			fresh = append(fresh, k)
		}
		if err := s.keys.AddKeys(ctx, fresh); err != nil {
			return client, 0, err
		}
		s.log.Debug().Str("client", client.ID.String()).Int("added", missing).Msg("pre-key pool replenished")
	} else {
		missing = 0
	}

	all, err := s.keys.ListKeys(ctx, client.ID, "")
	if err != nil {
		return client, 0, err
	}
	client.Keys = all
	return client, missing, nil
}

// ConsumeKey marks a published key as provisioned.
func (s *Service) ConsumeKey(ctx context.Context, id domain.KeyID) error {
	return s.keys.ProvisionKey(ctx, id)
}

// PickRandomPublishedKey chooses one of other's published keys uniformly.
func (s *Service) PickRandomPublishedKey(ctx context.Context, other domain.Client) (domain.EphemeralKey, error) {
	published := other.PublishedKeys()
	if len(published) == 0 {
		return domain.EphemeralKey{}, fmt.Errorf("client %s: %w", other.ID, domain.ErrNoPublishedKeys)
	}
	n, err := cryptorand.Int(s.crypto.Reader(), big.NewInt(int64(len(published))))
	if err != nil {
		return domain.EphemeralKey{}, fmt.Errorf("pick key: %w", domain.ErrCrypto)
	}
	return published[n.Int64()], nil
}

// SessionKey returns an own key for an outgoing session. A device that has a
// published pool uses one of those keys; a pending device has none, so a key
// is minted and stored already provisioned.
func (s *Service) SessionKey(ctx context.Context, self domain.Client) (domain.EphemeralKey, error) {
	published, err := s.keys.ListKeys(ctx, self.ID, domain.KeyPublished)
	if err != nil {
		return domain.EphemeralKey{}, err
	}
	if len(published) > 0 {
		return published[0], nil
	}

	k, err := s.newKey(self.ID, domain.KeyProvisioned)
	if err != nil {
		return domain.EphemeralKey{}, err
	}
	if err := s.keys.AddKeys(ctx, []domain.EphemeralKey{k}); err != nil {
		return domain.EphemeralKey{}, err
	}
	return k, nil
}

// Private returns the private half of one of our own keys.
func (s *Service) Private(ctx context.Context, id domain.KeyID) (domain.X25519Private, error) {
	k, ok, err := s.keys.LoadKey(ctx, id)
	if err != nil {
		return domain.X25519Private{}, err
	}
	if !ok || k.Private.IsZero() {
		return domain.X25519Private{}, fmt.Errorf("own key %s: %w", id, domain.ErrNotFound)
	}
	return k.Private, nil
}

func (s *Service) newKey(owner domain.ClientID, status domain.KeyStatus) (domain.EphemeralKey, error) {
	id, err := uuid.NewRandomFromReader(s.crypto.Reader())
	if err != nil {
		return domain.EphemeralKey{}, errors.Join(domain.ErrCrypto, err)
	}
	kp, err := s.crypto.GenerateKeyPair()
	if err != nil {
		return domain.EphemeralKey{}, err
	}
	return domain.EphemeralKey{
		ID:       domain.KeyID(id.String()),
		ClientID: owner,
		Public:   kp.Public,
		Private:  kp.Private,
		Status:   status,
	}, nil
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)

package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"syncpair/internal/domain"
)

// Service publishes and fetches clients and envelopes.
type Service struct {
	objects domain.ObjectStore
	clients domain.ClientStore
	props   domain.PropertyStore
	log     zerolog.Logger
}

// New constructs a message service over the remote object store and the
// local client and property stores.
func New(objects domain.ObjectStore, clients domain.ClientStore, props domain.PropertyStore, log zerolog.Logger) *Service {
	return &Service{objects: objects, clients: clients, props: props, log: log}
}

// PublishMeta writes the protocol version record.
func (s *Service) PublishMeta(ctx context.Context) error {
	b, err := json.Marshal(metaRecord{Version: domain.ProtocolVersion})
	if err != nil {
		return err
	}
	if _, err := s.objects.Put(ctx, CollectionMeta, MetaRecordID, b); err != nil {
		return fmt.Errorf("publish meta: %w", err)
	}
	return nil
}

// CheckMeta verifies the remote protocol version, publishing the record when
// no device has done so yet.
func (s *Service) CheckMeta(ctx context.Context) error {
	obj, err := s.objects.Get(ctx, CollectionMeta, MetaRecordID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.PublishMeta(ctx)
	}
	if err != nil {
		return fmt.Errorf("fetch meta: %w", err)
	}
	var m metaRecord
	if err := json.Unmarshal(obj.Payload, &m); err != nil {
		return fmt.Errorf("decode meta: %w", domain.ErrFormat)
	}
	if m.Version != domain.ProtocolVersion {
		return fmt.Errorf("remote protocol version %q: %w", m.Version, domain.ErrUnsupportedVersion)
	}
	return nil
}

// PublishClient writes client's public record with its published keys.
func (s *Service) PublishClient(ctx context.Context, client domain.Client) error {
	b, err := encodeClient(client)
	if err != nil {
		return err
	}
	if _, err := s.objects.Put(ctx, CollectionClients, string(client.ID), b); err != nil {
		return fmt.Errorf("publish client %s: %w", client.ID, err)
	}
	s.log.Debug().Str("client", client.ID.String()).Int("keys", len(client.PublishedKeys())).Msg("client published")
	return nil
}

// SyncClients fetches every remote client record other than self, verifies
// it and upserts it locally. Keys this device already consumed stay
// provisioned. Records that fail verification are skipped. The returned
// peers reflect local state after the upsert.
func (s *Service) SyncClients(ctx context.Context, self domain.Client) ([]domain.Client, error) {
	listing, err := s.objects.List(ctx, CollectionClients, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	var peers []domain.Client
	for _, id := range listing.IDs {
		if id == string(self.ID) {
			continue
		}
		obj, err := s.objects.Get(ctx, CollectionClients, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch client %s: %w", id, err)
		}
		remote, err := decodeClient(id, obj.Payload)
		if err != nil {
			s.log.Warn().Err(err).Str("client", id).Msg("skipping client record")
			continue
		}
		if err := s.clients.SaveClient(ctx, remote); errors.Is(err, domain.ErrIntegrity) {
			s.log.Warn().Err(err).Str("client", id).Msg("skipping client record")
			continue
		} else if err != nil {
			return nil, err
		}
		local, ok, err := s.clients.LoadClient(ctx, remote.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			peers = append(peers, local)
		}
	}
	return peers, nil
}

// Send stores env under its destination key id.
func (s *Service) Send(ctx context.Context, env domain.Envelope) error {
	b, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	if _, err := s.objects.Put(ctx, CollectionMessages, string(env.DestinationKeyID), b); err != nil {
		return fmt.Errorf("send %s #%d: %w", env.Type, env.Sequence, err)
	}
	return nil
}

// CheckMessages hands every new envelope addressed to self to handle and
// returns how many were handled.
//
// A handled envelope's remote copy is deleted, as is one the handler reports
// as domain.ErrDuplicate, which is not counted. Envelopes addressed to other
// clients are left alone. When handle fails the envelope stays remote for a
// later poll, unless the error is permanent (see domain.IsPermanent), in
// which case retrying cannot help and it is deleted. The lastpoll watermark
// only advances to the listing's timestamp when no envelope failed.
func (s *Service) CheckMessages(ctx context.Context, self domain.Client, handle domain.MessageHandler) (int, error) {
	newer, err := s.lastPoll(ctx)
	if err != nil {
		return 0, err
	}
	listing, err := s.objects.List(ctx, CollectionMessages, newer)
	if err != nil {
		return 0, fmt.Errorf("list messages: %w", err)
	}

	var (
		handled  int
		complete = true
	)
	for _, id := range listing.IDs {
		log := s.log.With().Str("object", id).Logger()

		obj, err := s.objects.Get(ctx, CollectionMessages, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Msg("fetch message")
			complete = false
			continue
		}

		env, err := decodeEnvelope(obj.Payload)
		if err == nil && env.DestinationClientID != self.ID {
			continue
		}
		if err == nil {
			err = handle(ctx, env)
		}
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			log.Debug().Err(err).Msg("already processed")
		case err != nil:
			complete = false
			if !domain.IsPermanent(err) {
				log.Warn().Err(err).Msg("message left for retry")
				continue
			}
			log.Warn().Err(err).Msg("dropping message")
		default:
			handled++
		}

		if err := s.objects.Delete(ctx, CollectionMessages, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("delete remote message")
			complete = false
		}
	}

	if !complete {
		s.log.Info().Int("handled", handled).Msg("poll incomplete, watermark kept")
		return handled, nil
	}
	if err := s.props.SetProperty(ctx, domain.PropLastPoll, listing.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
		return handled, err
	}
	return handled, nil
}

func (s *Service) lastPoll(ctx context.Context) (time.Time, error) {
	v, ok, err := s.props.GetProperty(ctx, domain.PropLastPoll)
	if err != nil || !ok || v == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		s.log.Warn().Str("lastpoll", v).Msg("unparseable watermark, polling everything")
		return time.Time{}, nil
	}
	return t, nil
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)

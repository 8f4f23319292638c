package message

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"syncpair/internal/domain"
)

// Collection and record names in the object store.
const (
	CollectionClients  = "clientauth_clients"
	CollectionMessages = "clientauth_messages"
	CollectionMeta     = "meta"
	MetaRecordID       = "clientauth"
)

type metaRecord struct {
	Version string `json:"version"`
}

type wireEnvelope struct {
	Version             string `json:"version"`
	SourceClientID      string `json:"srcclientid"`
	SourceKeyID         string `json:"srckeyid"`
	SourceKey           string `json:"srckey,omitempty"`
	DestinationClientID string `json:"dstclientid"`
	DestinationKeyID    string `json:"dstkeyid"`
	Sequence            int    `json:"sequence"`
	Type                string `json:"type"`
	Content             string `json:"content"`
}

type wireKey struct {
	KeyID string `json:"keyid"`
	Key   string `json:"key"`
}

type wireClient struct {
	Version   string    `json:"version"`
	ClientID  string    `json:"clientid"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	EKeys     []wireKey `json:"ekeys"`
	Status    string    `json:"status"`
	AuthLevel string    `json:"authlevel"`
	HMAC      string    `json:"hmac"`
}

func encodeEnvelope(env domain.Envelope) ([]byte, error) {
	w := wireEnvelope{
		Version:             env.Version,
		SourceClientID:      string(env.SourceClientID),
		SourceKeyID:         string(env.SourceKeyID),
		DestinationClientID: string(env.DestinationClientID),
		DestinationKeyID:    string(env.DestinationKeyID),
		Sequence:            env.Sequence,
		Type:                string(env.Type),
		Content:             env.Content,
	}
	if !env.SourceKey.IsZero() {
		w.SourceKey = env.SourceKey.String()
	}
	return json.Marshal(w)
}

func decodeEnvelope(payload []byte) (domain.Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.Envelope{}, fmt.Errorf("decode envelope: %w", domain.ErrFormat)
	}
	if w.SourceClientID == "" || w.SourceKeyID == "" || w.DestinationClientID == "" ||
		w.DestinationKeyID == "" || w.Content == "" {
		return domain.Envelope{}, fmt.Errorf("envelope missing fields: %w", domain.ErrFormat)
	}
	if w.Version != domain.ProtocolVersion {
		return domain.Envelope{}, fmt.Errorf("envelope version %q: %w", w.Version, domain.ErrFormat)
	}
	switch domain.MessageType(w.Type) {
	case domain.TypeAuthRequest, domain.TypeAuthResponse:
	default:
		return domain.Envelope{}, fmt.Errorf("envelope type %q: %w", w.Type, domain.ErrFormat)
	}
	env := domain.Envelope{
		Version:             w.Version,
		SourceClientID:      domain.ClientID(w.SourceClientID),
		SourceKeyID:         domain.KeyID(w.SourceKeyID),
		DestinationClientID: domain.ClientID(w.DestinationClientID),
		DestinationKeyID:    domain.KeyID(w.DestinationKeyID),
		Sequence:            w.Sequence,
		Type:                domain.MessageType(w.Type),
		Content:             w.Content,
	}
	if w.SourceKey != "" {
		k, err := domain.ParseX25519Public(w.SourceKey)
		if err != nil {
			return domain.Envelope{}, fmt.Errorf("envelope source key: %w", domain.ErrFormat)
		}
		env.SourceKey = k
	}
	return env, nil
}

// recordMAC tags a client record with HMAC-SHA256 keyed by the client's
// identity public key, over the record serialised with an empty hmac field.
func recordMAC(w wireClient, identity domain.X25519Public) (string, error) {
	w.HMAC = ""
	body, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	m := hmac.New(sha256.New, identity.Slice())
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil)), nil
}

func encodeClient(c domain.Client) ([]byte, error) {
	w := wireClient{
		Version:   c.Version,
		ClientID:  string(c.ID),
		Name:      c.Name,
		Key:       c.IdentityKey.String(),
		EKeys:     []wireKey{},
		Status:    string(c.Status),
		AuthLevel: c.AuthLevel,
	}
	for _, k := range c.PublishedKeys() {
		w.EKeys = append(w.EKeys, wireKey{KeyID: string(k.ID), Key: k.Public.String()})
	}
	tag, err := recordMAC(w, c.IdentityKey)
	if err != nil {
		return nil, err
	}
	w.HMAC = tag
	return json.Marshal(w)
}

// decodeClient parses and verifies a client record stored under id.
func decodeClient(id string, payload []byte) (domain.Client, error) {
	var w wireClient
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.Client{}, fmt.Errorf("decode client record: %w", domain.ErrFormat)
	}
	if w.ClientID != id {
		return domain.Client{}, fmt.Errorf("client record %s claims id %q: %w", id, w.ClientID, domain.ErrFormat)
	}
	identity, err := domain.ParseX25519Public(w.Key)
	if err != nil {
		return domain.Client{}, fmt.Errorf("client record %s key: %w", id, domain.ErrFormat)
	}
	want, err := recordMAC(w, identity)
	if err != nil {
		return domain.Client{}, err
	}
	if !hmac.Equal([]byte(want), []byte(w.HMAC)) {
		return domain.Client{}, fmt.Errorf("client record %s: %w", id, domain.ErrIntegrity)
	}

	switch domain.ClientStatus(w.Status) {
	case domain.ClientPending, domain.ClientAuthorised:
	default:
		return domain.Client{}, fmt.Errorf("client record %s status %q: %w", id, w.Status, domain.ErrFormat)
	}
	c := domain.Client{
		ID:          domain.ClientID(w.ClientID),
		Name:        w.Name,
		IdentityKey: identity,
		Status:      domain.ClientStatus(w.Status),
		AuthLevel:   w.AuthLevel,
		Version:     w.Version,
	}
	for _, wk := range w.EKeys {
		pub, err := domain.ParseX25519Public(wk.Key)
		if err != nil || wk.KeyID == "" {
			return domain.Client{}, fmt.Errorf("client record %s ephemeral key: %w", id, domain.ErrFormat)
		}
		c.Keys = append(c.Keys, domain.EphemeralKey{
			ID:       domain.KeyID(wk.KeyID),
			ClientID: c.ID,
			Public:   pub,
			Status:   domain.KeyPublished,
		})
	}
	return c, nil
}

package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"syncpair/internal/domain"
	"syncpair/internal/store"
)

func openStore(t *testing.T, path, pass string) *store.SQLStore {
	t.Helper()
	s, err := store.Open(context.Background(), path, store.Options{Passphrase: pass, ScryptN: 16, ScryptR: 1, ScryptP: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newStore(t *testing.T) *store.SQLStore {
	t.Helper()
	return openStore(t, filepath.Join(t.TempDir(), "syncpair.db"), "pass")
}

func selfClient() domain.Client {
	return domain.Client{
		ID:              "self",
		Name:            "laptop",
		IdentityKey:     domain.X25519Public{1},
		IdentityPrivate: domain.X25519Private{2},
		Status:          domain.ClientAuthorised,
		AuthLevel:       domain.AuthLevelAll,
		Version:         domain.ProtocolVersion,
		Self:            true,
		Keys: []domain.EphemeralKey{
			{ID: "k1", Public: domain.X25519Public{3}, Private: domain.X25519Private{4}, Status: domain.KeyPublished},
			{ID: "k2", Public: domain.X25519Public{5}, Private: domain.X25519Private{6}, Status: domain.KeyPublished},
		},
	}
}

func peerClient(keys ...domain.KeyID) domain.Client {
	c := domain.Client{
		ID:          "peer",
		Name:        "phone",
		IdentityKey: domain.X25519Public{9},
		Status:      domain.ClientAuthorised,
		AuthLevel:   domain.AuthLevelAll,
		Version:     domain.ProtocolVersion,
	}
	for i, id := range keys {
		c.Keys = append(c.Keys, domain.EphemeralKey{ID: id, Public: domain.X25519Public{byte(20 + i)}, Status: domain.KeyPublished})
	}
	return c
}

func TestClient_SaveLoadSelf_OK(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if _, ok, err := s.LoadSelf(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	want := selfClient()
	if err := s.SaveClient(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := s.LoadSelf(ctx)
	if err != nil || !ok {
		t.Fatalf("load self: ok=%v err=%v", ok, err)
	}
	if got.ID != want.ID || got.IdentityKey != want.IdentityKey || got.IdentityPrivate != want.IdentityPrivate {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if !got.Self || !got.Authorised() {
		t.Fatalf("flags lost: self=%v status=%s", got.Self, got.Status)
	}
	if len(got.Keys) != 2 {
		t.Fatalf("want 2 keys, got %d", len(got.Keys))
	}
	for _, k := range got.Keys {
		if k.Private.IsZero() || k.ClientID != want.ID {
			t.Fatalf("key %s not restored: %+v", k.ID, k)
		}
	}
}

func TestProvisionKey_Twice_Fails(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.SaveClient(ctx, selfClient()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.ProvisionKey(ctx, "k1"); err != nil {
		t.Fatalf("first provision: %v", err)
	}
	if err := s.ProvisionKey(ctx, "k1"); !errors.Is(err, domain.ErrAlreadyProvisioned) {
		t.Fatalf("second provision: want ErrAlreadyProvisioned, got %v", err)
	}
	if err := s.ProvisionKey(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown key: want ErrNotFound, got %v", err)
	}

	published, err := s.ListKeys(ctx, "self", domain.KeyPublished)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(published) != 1 || published[0].ID != "k2" {
		t.Fatalf("want only k2 published, got %+v", published)
	}
}

func TestSaveClient_ReconcilesPeerKeys(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.SaveClient(ctx, peerClient("a", "b", "c")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.ProvisionKey(ctx, "a"); err != nil {
		t.Fatalf("provision: %v", err)
	}

	// The remote record still lists "a" but has withdrawn "c".
	if err := s.SaveClient(ctx, peerClient("a", "b")); err != nil {
		t.Fatalf("resave: %v", err)
	}

	a, ok, err := s.LoadKey(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("load a: ok=%v err=%v", ok, err)
	}
	if a.Status != domain.KeyProvisioned {
		t.Fatalf("consumed key reverted to %s", a.Status)
	}
	if _, ok, _ := s.LoadKey(ctx, "c"); ok {
		t.Fatal("withdrawn key still live")
	}
	peer, _, _ := s.LoadClient(ctx, "peer")
	if got := len(peer.PublishedKeys()); got != 1 {
		t.Fatalf("want 1 published peer key, got %d", got)
	}
}

func TestSaveClient_RejectsForeignKeyID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.SaveClient(ctx, selfClient()); err != nil {
		t.Fatalf("save self: %v", err)
	}

	// A peer record claiming one of our key ids.
	if err := s.SaveClient(ctx, peerClient("k1")); !errors.Is(err, domain.ErrIntegrity) {
		t.Fatalf("want ErrIntegrity, got %v", err)
	}

	k1, ok, err := s.LoadKey(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("load k1: ok=%v err=%v", ok, err)
	}
	if k1.ClientID != "self" || k1.Public != (domain.X25519Public{3}) || k1.Private != (domain.X25519Private{4}) {
		t.Fatalf("own key altered by peer record: %+v", k1)
	}
	if _, ok, _ := s.LoadClient(ctx, "peer"); ok {
		t.Fatal("peer saved despite rejected key")
	}
}

func TestSaveClient_WithdrawnKeyStaysWithdrawn(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.SaveClient(ctx, peerClient("a", "b", "c")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveClient(ctx, peerClient("a", "b")); err != nil {
		t.Fatalf("withdraw c: %v", err)
	}
	if err := s.SaveClient(ctx, peerClient("a", "b", "c")); err != nil {
		t.Fatalf("relist c: %v", err)
	}

	if _, ok, _ := s.LoadKey(ctx, "c"); ok {
		t.Fatal("withdrawn key revived")
	}
	published, err := s.ListKeys(ctx, "peer", domain.KeyPublished)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(published) != 2 {
		t.Fatalf("want 2 published peer keys, got %d", len(published))
	}
}

func TestCreateIncomingSession_RequiresOwnKey(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.SaveClient(ctx, selfClient()); err != nil {
		t.Fatalf("save self: %v", err)
	}
	if err := s.SaveClient(ctx, peerClient("a")); err != nil {
		t.Fatalf("save peer: %v", err)
	}

	for _, own := range []domain.KeyID{"a", "missing"} {
		sess := domain.Session{
			ID:                  domain.NewSessionID(domain.RoleResponder, own, "x"),
			Role:                domain.RoleResponder,
			OwnEphemeralKeyID:   own,
			OtherClientID:       "peer",
			OtherIdentityKey:    domain.X25519Public{9},
			OtherEphemeralKeyID: "x",
			OtherEphemeralKey:   domain.X25519Public{30},
			OtherSequence:       1,
			State:               domain.StateResponsePending,
		}
		first := domain.Message{Envelope: domain.Envelope{
			Version:             domain.ProtocolVersion,
			SourceClientID:      "peer",
			SourceKeyID:         "x",
			SourceKey:           domain.X25519Public{30},
			DestinationClientID: "self",
			DestinationKeyID:    own,
			Sequence:            domain.SequenceRequest,
			Type:                domain.TypeAuthRequest,
			Content:             "sealed",
		}}
		err := s.CreateIncomingSession(ctx, sess, first)
		if !errors.Is(err, domain.ErrSessionMismatch) {
			t.Fatalf("key %s: want ErrSessionMismatch, got %v", own, err)
		}
		if _, ok, _ := s.LoadSession(ctx, sess.ID); ok {
			t.Fatalf("key %s: session written", own)
		}
	}

	a, _, _ := s.LoadKey(ctx, "a")
	if a.Status != domain.KeyPublished {
		t.Fatalf("peer key consumed: %s", a.Status)
	}
}

func testSession(own, other domain.KeyID) domain.Session {
	return domain.Session{
		ID:                  domain.NewSessionID(domain.RoleInitiator, own, other),
		Role:                domain.RoleInitiator,
		OwnEphemeralKeyID:   own,
		OtherClientID:       "peer",
		OtherIdentityKey:    domain.X25519Public{9},
		OtherEphemeralKeyID: other,
		OtherEphemeralKey:   domain.X25519Public{20},
		OwnSequence:         1,
		State:               domain.StateRequestSent,
	}
}

func TestCreateSession_RollsBackOnConsumedKey(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.SaveClient(ctx, selfClient()); err != nil {
		t.Fatalf("save self: %v", err)
	}
	if err := s.SaveClient(ctx, peerClient("a")); err != nil {
		t.Fatalf("save peer: %v", err)
	}
	if err := s.ProvisionKey(ctx, "a"); err != nil {
		t.Fatalf("provision: %v", err)
	}

	sess := testSession("k1", "a")
	err := s.CreateSession(ctx, sess, "k1", "a")
	if !errors.Is(err, domain.ErrAlreadyProvisioned) {
		t.Fatalf("want ErrAlreadyProvisioned, got %v", err)
	}
	if _, ok, _ := s.LoadSession(ctx, sess.ID); ok {
		t.Fatal("session written despite failure")
	}
	k1, _, _ := s.LoadKey(ctx, "k1")
	if k1.Status != domain.KeyPublished {
		t.Fatalf("k1 consumed by failed transaction: %s", k1.Status)
	}
}

func TestSessionAndMessages_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.SaveClient(ctx, selfClient()); err != nil {
		t.Fatalf("save self: %v", err)
	}

	sess := domain.Session{
		ID:                  domain.NewSessionID(domain.RoleResponder, "k1", "a"),
		Role:                domain.RoleResponder,
		OwnEphemeralKeyID:   "k1",
		OtherClientID:       "peer",
		OtherIdentityKey:    domain.X25519Public{9},
		OtherEphemeralKeyID: "a",
		OtherEphemeralKey:   domain.X25519Public{20},
		OtherSequence:       1,
		State:               domain.StateResponsePending,
	}
	first := domain.Message{Envelope: domain.Envelope{
		Version:             domain.ProtocolVersion,
		SourceClientID:      "peer",
		SourceKeyID:         "a",
		SourceKey:           domain.X25519Public{20},
		DestinationClientID: "self",
		DestinationKeyID:    "k1",
		Sequence:            domain.SequenceRequest,
		Type:                domain.TypeAuthRequest,
		Content:             "sealed",
	}}
	if err := s.CreateIncomingSession(ctx, sess, first); err != nil {
		t.Fatalf("create incoming: %v", err)
	}
	if err := s.CreateIncomingSession(ctx, sess, first); !errors.Is(err, domain.ErrAlreadyProvisioned) {
		t.Fatalf("replay: want ErrAlreadyProvisioned, got %v", err)
	}

	got, ok, err := s.LoadMessage(ctx, sess.ID, domain.SequenceRequest)
	if err != nil || !ok {
		t.Fatalf("load message: ok=%v err=%v", ok, err)
	}
	if got.SourceKey != first.SourceKey || got.Content != "sealed" || got.Type != domain.TypeAuthRequest {
		t.Fatalf("message mismatch: %+v", got)
	}

	reply := first.Envelope
	reply.SourceClientID, reply.DestinationClientID = "self", "peer"
	reply.SourceKeyID, reply.DestinationKeyID = "k1", "a"
	reply.SourceKey = domain.X25519Public{}
	reply.Sequence = domain.SequenceResponse
	reply.Type = domain.TypeAuthResponse
	sess.OwnSequence = domain.SequenceResponse
	sess.State = domain.StateClosed
	if err := s.RecordMessage(ctx, domain.Message{Envelope: reply}, sess); err != nil {
		t.Fatalf("record: %v", err)
	}

	loaded, _, _ := s.LoadSession(ctx, sess.ID)
	if loaded.State != domain.StateClosed || loaded.OwnSequence != 2 || loaded.OtherSequence != 1 {
		t.Fatalf("session not updated: %+v", loaded)
	}
	closed, err := s.ListSessions(ctx, domain.StateClosed)
	if err != nil || len(closed) != 1 {
		t.Fatalf("list closed: %d %v", len(closed), err)
	}

	if err := s.MarkMessageRead(ctx, got.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := s.DeleteMessage(ctx, got.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.LoadMessage(ctx, sess.ID, domain.SequenceRequest); ok {
		t.Fatal("deleted message still loads")
	}
	live, _ := s.ListMessages(ctx, sess.ID, false)
	all, _ := s.ListMessages(ctx, sess.ID, true)
	if len(live) != 1 || len(all) != 2 {
		t.Fatalf("want 1 live and 2 total, got %d and %d", len(live), len(all))
	}
	if !all[0].Read || !all[0].Deleted {
		t.Fatalf("flags not persisted: %+v", all[0])
	}
}

func TestProperties_PlainAndSecret(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "syncpair.db")
	s := openStore(t, path, "correct")

	if err := s.SetProperty(ctx, domain.PropAuthStatus, "requested"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetSecret(ctx, domain.PropSyncKey, "S1"); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	if v, ok, _ := s.GetProperty(ctx, domain.PropAuthStatus); !ok || v != "requested" {
		t.Fatalf("get: %q %v", v, ok)
	}
	if _, ok, _ := s.GetProperty(ctx, domain.PropSyncKey); ok {
		t.Fatal("secret readable as plain property")
	}
	if err := s.DeleteProperty(ctx, domain.PropAuthStatus); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetProperty(ctx, domain.PropAuthStatus); ok {
		t.Fatal("deleted property still readable")
	}
	_ = s.Close()

	again := openStore(t, path, "correct")
	if v, ok, err := again.GetSecret(ctx, domain.PropSyncKey); err != nil || !ok || v != "S1" {
		t.Fatalf("reopen secret: %q %v %v", v, ok, err)
	}
	_ = again.Close()

	if _, err := store.Open(ctx, path, store.Options{Passphrase: "wrong"}); !errors.Is(err, domain.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.SaveClient(ctx, selfClient()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SetProperty(ctx, domain.PropLastPoll, "x"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, _ := s.LoadSelf(ctx); ok {
		t.Fatal("self survived reset")
	}
	if _, ok, _ := s.GetProperty(ctx, domain.PropLastPoll); ok {
		t.Fatal("property survived reset")
	}
	clients, _ := s.ListClients(ctx)
	if len(clients) != 0 {
		t.Fatalf("want no clients, got %d", len(clients))
	}
}

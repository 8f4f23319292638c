package clientauth_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
	"syncpair/internal/services/clientauth"
	"syncpair/internal/services/identity"
	"syncpair/internal/services/message"
	"syncpair/internal/services/prekey"
	"syncpair/internal/services/session"
	"syncpair/internal/storage"
	"syncpair/internal/store"
)

type device struct {
	store    *store.SQLStore
	remote   domain.ObjectStore
	ids      *identity.Service
	messages *message.Service
	auth     *clientauth.Service
}

func newDevice(t *testing.T, remote domain.ObjectStore, name string) *device {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), name+".db"), store.Options{ScryptN: 16, ScryptR: 1, ScryptP: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	log := zerolog.Nop()
	p := crypto.NewProvider(nil)
	ids := identity.New(st, p, log)
	keys := prekey.New(st, p, log, 3)
	sessions := session.New(st, keys, log)
	messages := message.New(remote, st, st, log)
	return &device{
		store:    st,
		remote:   remote,
		ids:      ids,
		messages: messages,
		auth:     clientauth.New(st, ids, keys, sessions, messages, p, log),
	}
}

func (d *device) prop(t *testing.T, key string) string {
	t.Helper()
	v, _, err := d.store.GetProperty(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return v
}

// pair sets up authorised device A holding sync key S1 and pending device B
// that has asked A for authorisation, then lets A receive the request.
func pair(t *testing.T) (a, b *device, code string, pending clientauth.PendingRequest) {
	t.Helper()
	ctx := context.Background()
	remote := storage.NewMemory()
	a = newDevice(t, remote, "a")
	b = newDevice(t, remote, "b")

	if _, err := a.auth.Enrol(ctx, clientauth.EnrolOptions{Name: "A", Authorised: true, Password: "pw1", SyncKey: "S1"}); err != nil {
		t.Fatalf("enrol A: %v", err)
	}
	if _, err := b.auth.Enrol(ctx, clientauth.EnrolOptions{Name: "B"}); err != nil {
		t.Fatalf("enrol B: %v", err)
	}

	res, err := b.auth.AuthoriseClient(ctx, "pw1")
	if err != nil {
		t.Fatalf("authorise: %v", err)
	}
	if res.AlreadyAuthorised || res.Sent != 1 || len(res.AuthCode) != clientauth.AuthCodeLength {
		t.Fatalf("unexpected authorise result %+v", res)
	}
	if got := b.prop(t, domain.PropAuthStatus); got != clientauth.StatusRequested {
		t.Fatalf("B authstatus = %q", got)
	}

	if _, err := a.auth.Poll(ctx); err != nil {
		t.Fatalf("A poll: %v", err)
	}
	reqs, err := a.auth.PendingRequests(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Name != "B" {
		t.Fatalf("want one pending request from B, got %+v", reqs)
	}
	return a, b, res.AuthCode, reqs[0]
}

func sessionStates(t *testing.T, d *device) []domain.SessionState {
	t.Helper()
	all, err := d.store.ListSessions(context.Background(), "")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	var out []domain.SessionState
	for _, s := range all {
		out = append(out, s.State)
	}
	return out
}

func TestHandshake_EndToEnd(t *testing.T) {
	ctx := context.Background()
	a, b, code, req := pair(t)

	status, err := a.auth.SendClientAuthResponse(ctx, req.SessionID, true, strings.ToLower(code))
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if status != domain.AuthOkay {
		t.Fatalf("want okay, got %s", status)
	}

	if _, err := b.auth.Poll(ctx); err != nil {
		t.Fatalf("B poll: %v", err)
	}
	if got := b.prop(t, domain.PropAuthStatus); got != clientauth.StatusAuthorised {
		t.Fatalf("B authstatus = %q", got)
	}
	if got := b.prop(t, domain.PropAuthBy); got != "A" {
		t.Fatalf("B authby = %q", got)
	}
	key, ok, err := b.auth.SyncKey(ctx)
	if err != nil || !ok || key != "S1" {
		t.Fatalf("B synckey = %q (%v, %v)", key, ok, err)
	}
	self, _, _ := b.store.LoadSelf(ctx)
	if !self.Authorised() || len(self.PublishedKeys()) != 3 {
		t.Fatalf("B not authorised with a full pool: %s, %d keys", self.Status, len(self.PublishedKeys()))
	}

	for name, d := range map[string]*device{"A": a, "B": b} {
		states := sessionStates(t, d)
		if len(states) != 1 || states[0] != domain.StateClosed {
			t.Fatalf("%s sessions: %v", name, states)
		}
	}

	// B can now vouch for others; asking again short-circuits.
	res, err := b.auth.AuthoriseClient(ctx, "pw1")
	if err != nil || !res.AlreadyAuthorised {
		t.Fatalf("second authorise: %+v %v", res, err)
	}
}

func TestHandshake_WrongCodeFails(t *testing.T) {
	ctx := context.Background()
	a, b, code, req := pair(t)

	wrong := "AAAAAA"
	if wrong == code {
		wrong = "BBBBBB"
	}
	status, err := a.auth.SendClientAuthResponse(ctx, req.SessionID, true, wrong)
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if status != domain.AuthFail {
		t.Fatalf("want fail for a wrong code, got %s", status)
	}

	if _, err := b.auth.Poll(ctx); err != nil {
		t.Fatalf("B poll: %v", err)
	}
	if _, ok, _ := b.auth.SyncKey(ctx); ok {
		t.Fatal("sync key adopted from a failed response")
	}
	if got := b.prop(t, domain.PropAuthStatus); got != clientauth.StatusRequested {
		t.Fatalf("B authstatus = %q", got)
	}
	if states := sessionStates(t, b); len(states) != 1 || states[0] != domain.StateClosed {
		t.Fatalf("B session not closed: %v", states)
	}
}

func TestHandshake_RejectSendsFail(t *testing.T) {
	ctx := context.Background()
	a, b, code, req := pair(t)

	status, err := a.auth.SendClientAuthResponse(ctx, req.SessionID, false, code)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if status != domain.AuthFail {
		t.Fatalf("want fail on reject, got %s", status)
	}
	if _, err := a.auth.SendClientAuthResponse(ctx, req.SessionID, true, code); err == nil {
		t.Fatal("answered the same request twice")
	}

	if _, err := b.auth.Poll(ctx); err != nil {
		t.Fatalf("B poll: %v", err)
	}
	if _, ok, _ := b.auth.SyncKey(ctx); ok {
		t.Fatal("sync key adopted after reject")
	}
}

func remoteMessages(t *testing.T, d *device) []string {
	t.Helper()
	l, err := d.remote.List(context.Background(), message.CollectionMessages, time.Time{})
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return l.IDs
}

func TestHandshake_InvalidResponsesRejected(t *testing.T) {
	tests := []struct {
		name string
		resp func(a domain.Client) domain.AuthResponse
	}{
		{"wrong client", func(a domain.Client) domain.AuthResponse {
			return domain.AuthResponse{ClientID: "someone-else", Name: a.Name, Status: domain.AuthOkay, SyncKey: "S1"}
		}},
		{"okay without sync key", func(a domain.Client) domain.AuthResponse {
			return domain.AuthResponse{ClientID: a.ID, Name: a.Name, Status: domain.AuthOkay}
		}},
		{"unknown status", func(a domain.Client) domain.AuthResponse {
			return domain.AuthResponse{ClientID: a.ID, Name: a.Name, Status: "maybe", SyncKey: "S1"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a, b, _, req := pair(t)
			self, _, err := a.store.LoadSelf(ctx)
			if err != nil {
				t.Fatalf("load A: %v", err)
			}
			if err := a.auth.SendRawResponse(ctx, req.SessionID, tt.resp(self)); err != nil {
				t.Fatalf("send: %v", err)
			}

			if _, err := b.auth.Poll(ctx); err != nil {
				t.Fatalf("B poll: %v", err)
			}
			if _, ok, _ := b.auth.SyncKey(ctx); ok {
				t.Fatal("sync key adopted from an invalid response")
			}
			if got := b.prop(t, domain.PropAuthStatus); got != clientauth.StatusRequested {
				t.Fatalf("B authstatus = %q", got)
			}
			if me, _, _ := b.store.LoadSelf(ctx); me.Authorised() {
				t.Fatal("B marked authorised")
			}
			if states := sessionStates(t, b); len(states) != 1 || states[0] != domain.StateClosed {
				t.Fatalf("B session not closed: %v", states)
			}
			if ids := remoteMessages(t, b); len(ids) != 0 {
				t.Fatalf("invalid response left remote: %v", ids)
			}
		})
	}
}

func TestHandshake_RequesterNotPendingClosed(t *testing.T) {
	ctx := context.Background()
	remote := storage.NewMemory()
	a := newDevice(t, remote, "a")
	b := newDevice(t, remote, "b")
	if _, err := a.auth.Enrol(ctx, clientauth.EnrolOptions{Name: "A", Authorised: true, Password: "pw1", SyncKey: "S1"}); err != nil {
		t.Fatalf("enrol A: %v", err)
	}
	if _, err := b.auth.Enrol(ctx, clientauth.EnrolOptions{Name: "B"}); err != nil {
		t.Fatalf("enrol B: %v", err)
	}
	if _, err := b.auth.AuthoriseClient(ctx, "pw1"); err != nil {
		t.Fatalf("authorise: %v", err)
	}

	// B's record now claims it is already authorised.
	me, err := b.ids.SetStatus(ctx, domain.ClientAuthorised)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := b.messages.PublishClient(ctx, me); err != nil {
		t.Fatalf("publish: %v", err)
	}

	res, err := a.auth.Poll(ctx)
	if err != nil {
		t.Fatalf("A poll: %v", err)
	}
	if res.Handled != 1 {
		t.Fatalf("want the request handled, got %d", res.Handled)
	}
	reqs, err := a.auth.PendingRequests(ctx)
	if err != nil || len(reqs) != 0 {
		t.Fatalf("want no pending requests, got %+v %v", reqs, err)
	}
	if states := sessionStates(t, a); len(states) != 1 || states[0] != domain.StateClosed {
		t.Fatalf("A session not closed: %v", states)
	}
	if ids := remoteMessages(t, a); len(ids) != 0 {
		t.Fatalf("request left remote or response sent: %v", ids)
	}
}

func TestHandshake_RequestToForeignKeyDropped(t *testing.T) {
	ctx := context.Background()
	remote := storage.NewMemory()
	a := newDevice(t, remote, "a")
	p := newDevice(t, remote, "p")
	b := newDevice(t, remote, "b")
	if _, err := a.auth.Enrol(ctx, clientauth.EnrolOptions{Name: "A", Authorised: true, Password: "pw1", SyncKey: "S1"}); err != nil {
		t.Fatalf("enrol A: %v", err)
	}
	peer, err := p.auth.Enrol(ctx, clientauth.EnrolOptions{Name: "P", Authorised: true, Password: "pw1", SyncKey: "S1"})
	if err != nil {
		t.Fatalf("enrol P: %v", err)
	}
	me, err := b.auth.Enrol(ctx, clientauth.EnrolOptions{Name: "B"})
	if err != nil {
		t.Fatalf("enrol B: %v", err)
	}
	if _, err := a.auth.Poll(ctx); err != nil {
		t.Fatalf("A first poll: %v", err)
	}

	// A request addressed to A but naming one of P's keys.
	victim := peer.PublishedKeys()[0].ID
	forged := domain.Envelope{
		Version:             domain.ProtocolVersion,
		SourceClientID:      me.ID,
		SourceKeyID:         "forged-src",
		SourceKey:           me.IdentityKey,
		DestinationClientID: mustSelf(t, a).ID,
		DestinationKeyID:    victim,
		Sequence:            domain.SequenceRequest,
		Type:                domain.TypeAuthRequest,
		Content:             "sealed",
	}
	if err := b.messages.Send(ctx, forged); err != nil {
		t.Fatalf("send: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := a.auth.Poll(ctx); err != nil {
			t.Fatalf("A poll %d: %v", i, err)
		}
	}
	k, ok, err := a.store.LoadKey(ctx, victim)
	if err != nil || !ok || k.Status != domain.KeyPublished {
		t.Fatalf("peer key consumed on A: %+v ok=%v err=%v", k, ok, err)
	}
	if reqs, _ := a.auth.PendingRequests(ctx); len(reqs) != 0 {
		t.Fatalf("forged request pending: %+v", reqs)
	}
	if states := sessionStates(t, a); len(states) != 0 {
		t.Fatalf("session created for forged request: %v", states)
	}
	if ids := remoteMessages(t, a); len(ids) != 0 {
		t.Fatalf("forged request left remote: %v", ids)
	}
}

func mustSelf(t *testing.T, d *device) domain.Client {
	t.Helper()
	c, ok, err := d.store.LoadSelf(context.Background())
	if err != nil || !ok {
		t.Fatalf("load self: ok=%v err=%v", ok, err)
	}
	return c
}

func TestStatus_Reports(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := pair(t)

	st, err := a.auth.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.AuthStatus != clientauth.StatusAuthorised || !st.HasSyncKey {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Sessions[domain.StateResponsePending] != 1 {
		t.Fatalf("want one pending session, got %v", st.Sessions)
	}
	if st.Fingerprint == "" || st.LastPoll == "" {
		t.Fatalf("missing fingerprint or lastpoll: %+v", st)
	}

	if err := a.auth.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := a.auth.Status(ctx); err == nil {
		t.Fatal("status after reset should report no identity")
	}
}

func TestAuthCode_Alphabet(t *testing.T) {
	p := crypto.NewProvider(nil)
	for i := 0; i < 200; i++ {
		code, err := clientauth.NewAuthCode(p)
		if err != nil {
			t.Fatalf("NewAuthCode: %v", err)
		}
		if len(code) != clientauth.AuthCodeLength || strings.ContainsAny(code, "LO01") {
			t.Fatalf("bad code %q", code)
		}
	}
	if got := clientauth.NormaliseAuthCode(" ab-c 12 "); got != "ABC12" {
		t.Fatalf("NormaliseAuthCode = %q", got)
	}
}

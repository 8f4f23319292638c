package identity_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
	"syncpair/internal/services/identity"
	"syncpair/internal/store"
)

func newService(t *testing.T) *identity.Service {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "db"), store.Options{ScryptN: 16, ScryptR: 1, ScryptP: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return identity.New(st, crypto.NewProvider(nil), zerolog.Nop())
}

func TestCreateSelf_ThenLoad(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	if _, err := svc.LoadSelf(ctx); !errors.Is(err, domain.ErrNoIdentity) {
		t.Fatalf("want ErrNoIdentity, got %v", err)
	}
	created, err := svc.CreateSelf(ctx, " phone ", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "phone" || created.Status != domain.ClientPending || !created.Self {
		t.Fatalf("unexpected identity %+v", created)
	}

	loaded, err := svc.LoadSelf(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != created.ID || loaded.IdentityPrivate != created.IdentityPrivate {
		t.Fatal("loaded identity differs from created")
	}

	if _, err := svc.CreateSelf(ctx, "again", true); !errors.Is(err, domain.ErrIdentityExists) {
		t.Fatalf("want ErrIdentityExists, got %v", err)
	}
}

func TestSetStatus_AndFingerprint(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	created, err := svc.CreateSelf(ctx, "laptop", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.SetStatus(ctx, domain.ClientAuthorised)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if !updated.Authorised() {
		t.Fatal("status not updated")
	}
	if again, _ := svc.LoadSelf(ctx); !again.Authorised() {
		t.Fatal("status not persisted")
	}

	fp, err := svc.Fingerprint(ctx)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if fp != crypto.Fingerprint(created.IdentityKey) || strings.TrimSpace(string(fp)) == "" {
		t.Fatalf("unexpected fingerprint %q", fp)
	}
}

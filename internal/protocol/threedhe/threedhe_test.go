package threedhe_test

import (
	"errors"
	"testing"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
	"syncpair/internal/protocol/threedhe"
)

type party struct {
	identity  domain.KeyPair
	ephemeral domain.KeyPair
}

func makeParty(t *testing.T, p *crypto.Provider) party {
	t.Helper()
	id, err := p.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	eph, err := p.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return party{identity: id, ephemeral: eph}
}

func TestDerive_InitiatorAndResponderAgree(t *testing.T) {
	p := crypto.NewProvider(nil)
	for i := 0; i < 20; i++ {
		alice := makeParty(t, p)
		bob := makeParty(t, p)

		ka, err := threedhe.Derive(domain.RoleInitiator,
			alice.identity.Private, alice.ephemeral.Private,
			bob.identity.Public, bob.ephemeral.Public)
		if err != nil {
			t.Fatalf("initiator Derive: %v", err)
		}
		kb, err := threedhe.Derive(domain.RoleResponder,
			bob.identity.Private, bob.ephemeral.Private,
			alice.identity.Public, alice.ephemeral.Public)
		if err != nil {
			t.Fatalf("responder Derive: %v", err)
		}
		if ka != kb {
			t.Fatalf("round %d: initiator and responder keys differ", i)
		}
		if ka.Cipher == ka.MAC {
			t.Fatal("cipher and mac keys must differ")
		}
	}
}

func TestDerive_SameRoleBothSidesDisagree(t *testing.T) {
	// Both sides claiming to initiate fold the DH values in a different
	// order, so the keys must not match.
	p := crypto.NewProvider(nil)
	alice := makeParty(t, p)
	bob := makeParty(t, p)

	ka, err := threedhe.Derive(domain.RoleInitiator,
		alice.identity.Private, alice.ephemeral.Private,
		bob.identity.Public, bob.ephemeral.Public)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	kb, err := threedhe.Derive(domain.RoleInitiator,
		bob.identity.Private, bob.ephemeral.Private,
		alice.identity.Public, alice.ephemeral.Public)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if ka == kb {
		t.Fatal("keys unexpectedly equal when both sides act as initiator")
	}
}

func TestDerive_WrongEphemeralDisagrees(t *testing.T) {
	p := crypto.NewProvider(nil)
	alice := makeParty(t, p)
	bob := makeParty(t, p)
	other := makeParty(t, p)

	ka, err := threedhe.Derive(domain.RoleInitiator,
		alice.identity.Private, alice.ephemeral.Private,
		bob.identity.Public, other.ephemeral.Public)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	kb, err := threedhe.Derive(domain.RoleResponder,
		bob.identity.Private, bob.ephemeral.Private,
		alice.identity.Public, alice.ephemeral.Public)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if ka == kb {
		t.Fatal("keys equal despite mismatched ephemeral key")
	}
}

func TestDerive_RejectsBadInput(t *testing.T) {
	p := crypto.NewProvider(nil)
	alice := makeParty(t, p)

	_, err := threedhe.Derive(domain.RoleInitiator,
		alice.identity.Private, alice.ephemeral.Private,
		domain.X25519Public{}, domain.X25519Public{})
	if !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("want ErrCrypto for low-order key, got %v", err)
	}

	_, err = threedhe.Derive(domain.Role("observer"),
		alice.identity.Private, alice.ephemeral.Private,
		alice.identity.Public, alice.ephemeral.Public)
	if !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("want ErrCrypto for unknown role, got %v", err)
	}
}

package store

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"syncpair/internal/domain"
)

const vaultSaltSize = 16

// checkPlaintext is sealed when the vault is created; failing to open it
// means the passphrase is wrong.
var checkPlaintext = []byte("syncpair vault v1")

// vault seals column values with a key derived once from the passphrase.
type vault struct {
	aead cipher.AEAD
	rand io.Reader
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }

func openVault(ctx context.Context, db querier, opts Options) (*vault, error) {
	random := opts.Rand
	if random == nil {
		random = rand.Reader
	}

	var (
		salt, check []byte
		n, r, p     int
	)
	err := db.QueryRowContext(ctx,
		`SELECT salt, scrypt_n, scrypt_r, scrypt_p, check_value FROM vault WHERE id = 1`,
	).Scan(&salt, &n, &r, &p, &check)
	switch {
	case isNoRows(err):
		return createVault(ctx, db, opts, random)
	case err != nil:
		return nil, fmt.Errorf("load vault: %w", err)
	}

	v, err := deriveVault(opts.Passphrase, salt, n, r, p, random)
	if err != nil {
		return nil, err
	}
	if _, err := v.open(check, []byte("vault")); err != nil {
		return nil, domain.ErrWrongPassphrase
	}
	return v, nil
}

func createVault(ctx context.Context, db querier, opts Options, random io.Reader) (*vault, error) {
	n, r, p := scryptParamsDefault()
	if opts.ScryptN > 0 {
		n = opts.ScryptN
	}
	if opts.ScryptR > 0 {
		r = opts.ScryptR
	}
	if opts.ScryptP > 0 {
		p = opts.ScryptP
	}
	salt := make([]byte, vaultSaltSize)
	if _, err := io.ReadFull(random, salt); err != nil {
		return nil, fmt.Errorf("vault salt: %w", domain.ErrCrypto)
	}
	v, err := deriveVault(opts.Passphrase, salt, n, r, p, random)
	if err != nil {
		return nil, err
	}
	check, err := v.seal(checkPlaintext, []byte("vault"))
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO vault (id, salt, scrypt_n, scrypt_r, scrypt_p, check_value) VALUES (1, ?, ?, ?, ?, ?)`,
		salt, n, r, p, check,
	); err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	return v, nil
}

func deriveVault(passphrase string, salt []byte, n, r, p int, random io.Reader) (*vault, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, n, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", domain.ErrCrypto)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", domain.ErrCrypto)
	}
	return &vault{aead: aead, rand: random}, nil
}

// seal returns nonce || ciphertext. ad binds the value to its row so sealed
// columns cannot be swapped between rows.
func (v *vault) seal(plaintext, ad []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plaintext)+v.aead.Overhead())
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return nil, fmt.Errorf("vault nonce: %w", domain.ErrCrypto)
	}
	return v.aead.Seal(nonce, nonce, plaintext, ad), nil
}

func (v *vault) open(sealed, ad []byte) ([]byte, error) {
	ns := v.aead.NonceSize()
	if len(sealed) < ns+v.aead.Overhead() {
		return nil, fmt.Errorf("sealed value too short: %w", domain.ErrIntegrity)
	}
	pt, err := v.aead.Open(nil, sealed[:ns], sealed[ns:], ad)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", domain.ErrIntegrity)
	}
	return pt, nil
}

// sealKey seals a private key, or returns nil for a zero key.
func (v *vault) sealKey(priv domain.X25519Private, ad string) ([]byte, error) {
	if priv.IsZero() {
		return nil, nil
	}
	return v.seal(priv.Slice(), []byte(ad))
}

func (v *vault) openKey(sealed []byte, ad string) (domain.X25519Private, error) {
	var priv domain.X25519Private
	if len(sealed) == 0 {
		return priv, nil
	}
	raw, err := v.open(sealed, []byte(ad))
	if err != nil {
		return priv, err
	}
	if len(raw) != len(priv) {
		return priv, fmt.Errorf("private key length %d: %w", len(raw), domain.ErrFormat)
	}
	copy(priv[:], raw)
	return priv, nil
}


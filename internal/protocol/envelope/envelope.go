package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"syncpair/internal/crypto"
	"syncpair/internal/domain"
	"syncpair/internal/protocol/threedhe"
)

type sealed struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"IV"`
	HMAC       string `json:"hmac"`
}

// Seal encrypts plaintext under keys and returns the JSON envelope.
func Seal(p *crypto.Provider, plaintext []byte, keys threedhe.Keys) (string, error) {
	block, err := aes.NewCipher(keys.Cipher[:])
	if err != nil {
		return "", fmt.Errorf("%w: aes: %v", domain.ErrCrypto, err)
	}
	iv, err := p.RandomBytes(aes.BlockSize)
	if err != nil {
		return "", err
	}
	padded := pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	env := sealed{
		Ciphertext: crypto.B64(ct),
		IV:         crypto.B64(iv),
	}
	env.HMAC = mac(keys.MAC[:], env.Ciphertext)

	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Open verifies and decrypts a JSON envelope produced by Seal.
func Open(content string, keys threedhe.Keys) ([]byte, error) {
	var env sealed
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, fmt.Errorf("%w: envelope json: %v", domain.ErrFormat, err)
	}
	if env.Ciphertext == "" || env.IV == "" || env.HMAC == "" {
		return nil, fmt.Errorf("%w: envelope needs ciphertext, IV and hmac", domain.ErrFormat)
	}

	want := mac(keys.MAC[:], env.Ciphertext)
	if subtle.ConstantTimeCompare([]byte(want), []byte(env.HMAC)) != 1 {
		return nil, domain.ErrIntegrity
	}

	ct, err := crypto.FromB64(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", domain.ErrFormat, err)
	}
	iv, err := crypto.FromB64(env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: IV: %v", domain.ErrFormat, err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: IV must be %d bytes", domain.ErrFormat, aes.BlockSize)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", domain.ErrFormat, len(ct))
	}

	block, err := aes.NewCipher(keys.Cipher[:])
	if err != nil {
		return nil, fmt.Errorf("%w: aes: %v", domain.ErrCrypto, err)
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	return unpad(pt, aes.BlockSize)
}

func mac(key []byte, ciphertext string) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(ciphertext))
	return hex.EncodeToString(h.Sum(nil))
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", domain.ErrFormat)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", domain.ErrFormat)
		}
	}
	return b[:len(b)-n], nil
}

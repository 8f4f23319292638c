// Package envelope seals protocol message bodies with encrypt-then-MAC.
//
// A sealed envelope is a JSON object
//
//	{"ciphertext": base64, "IV": base64, "hmac": hex}
//
// where ciphertext is AES-256-CBC (PKCS#7 padded) under the session cipher
// key with a random 16-byte IV, and hmac is HMAC-SHA256 under the session MAC
// key computed over the base64 ciphertext string, as sync records do.
//
// Open verifies the MAC before touching the ciphertext and fails with
// domain.ErrIntegrity on mismatch; a missing or undecodable field fails with
// domain.ErrFormat.
package envelope

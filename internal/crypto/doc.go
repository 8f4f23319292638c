// Package crypto exposes the primitives used by the pairing protocol.
//
// Contents
//
//   - Provider, the injected crypto backend: entropy source, X25519 key pair
//     generation and random salts
//   - X25519 Diffie–Hellman (SharedSecret)
//   - PBKDF2-HMAC-SHA256 password digests (PasswordDigest)
//   - Short public-key fingerprints for out-of-band comparison (Fingerprint)
//
// # Notes
//
// Nothing in this package installs process-wide state. Components that need
// randomness receive a *Provider; tests can hand in a deterministic reader.
// Key-agreement and envelope constructions built on these primitives live in
// internal/protocol.
package crypto

// Package store provides the local SQLite persistence for syncpair.
//
// SQLStore implements every domain storage interface over one database file
// opened through database/sql. The schema holds five tables:
//   - clients: device identities (the local one flagged is_self)
//   - ephemeral_keys: one-time pre-keys, published/provisioned/deleted
//   - sessions: per-pair protocol state
//   - messages: envelopes received and sent, one per (session, sequence)
//   - properties: scalar key/value pairs, optionally sealed
//
// Every row carries a deleted flag and a modified_at timestamp (unix
// milliseconds). Reads skip deleted rows unless asked otherwise. Writes that
// touch more than one table run in a single transaction.
//
// Private keys, the account password and the sync key are sealed with
// XChaCha20-Poly1305 under a key derived by scrypt from the configured
// passphrase; the KDF parameters live in the vault table.
package store

// Package message maps the pairing protocol onto the remote object store.
//
// Three kinds of object are stored:
//   - meta/clientauth: {"version":"1"}, checked before polling
//   - clientauth_clients/<clientid>: a device's public record with its
//     published ephemeral keys, tagged with an HMAC
//   - clientauth_messages/<dstkeyid>: one envelope, removed by the recipient
//     once it is committed locally
//
// CheckMessages polls the message collection from the lastpoll watermark and
// only advances the watermark when every message of the batch was handled.
package message

// Package threedhe implements the three-Diffie–Hellman agreement that keys a
// pairing session.
//
// # Overview
//
// Each device owns a long-term identity key (I) and publishes one-time
// ephemeral pre-keys (E). A session binds one ephemeral key of each side.
// Both sides compute the same three X25519 values and fold them into one
// secret:
//
//	initiator A: DH(IA, EB) ‖ DH(EA, IB) ‖ DH(EA, EB)
//	responder B: DH(EB, IA) ‖ DH(IB, EA) ‖ DH(EB, EA)
//
// The responder's list is the initiator's list with each pair mirrored, so
// the concatenations are byte-identical. The secret is expanded with
// HKDF-SHA256 into a 256-bit cipher key and a 256-bit MAC key.
//
// # Errors
//
// Derive wraps domain.ErrCrypto when any DH input is malformed or low order.
package threedhe

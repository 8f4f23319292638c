// Package session runs the per-pair state machine of the pairing protocol.
//
// A session binds one ephemeral key of each device. The requesting device
// creates it as initiator and moves requestpending -> requestsent -> closed;
// the responding device creates it on the first message and moves
// responsepending -> responsesent -> closed. Any transition outside that
// table, and any message that does not match the session's keys, closes the
// session.
package session

// Package clientauth implements the device pairing handshake.
//
// A pending device asks every authorised peer for the account's sync key by
// sending each of them a clientauthrequest. The request carries a verifier
// bound to a short auth code the user reads off the requesting device and to
// the account password, so the responder can check that a human compared the
// code without the code or password being sent. The responder's user enters
// the code to approve; on a match the response carries the sync key, sealed
// under the keys both sides derived with 3DHE.
//
// Both sides make progress by polling: Poll syncs client records, tops up
// the pre-key pool and hands new envelopes to the handshake.
package clientauth

// Package prekey manages the pool of one-time ephemeral keys a device
// publishes so peers can open sessions with it.
//
// An authorised device keeps at least PoolSize keys in the published state.
// A key is consumed (published to provisioned) exactly once, when a session
// binds it.
package prekey

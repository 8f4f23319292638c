// Package main runs an in-memory object store server for syncpair devices
// during development and tests. It serves the API documented in
// internal/storage.
//
// Flags
//
//	--addr        listen address (default :8080)
//	--token       bearer token clients must present (default none)
//	--log-level   debug, info, warn or error
//	--log-format  console or json
//
// Each flag may also be set through the environment as STORAGED_<NAME>,
// e.g. STORAGED_TOKEN.
//
// All state is held in memory and lost on process exit. The server only ever
// holds public client records and sealed envelopes.
package main

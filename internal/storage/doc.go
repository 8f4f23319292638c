// Package storage provides implementations of domain.ObjectStore, the remote
// key/value store that carries client records and protocol messages between
// devices.
//
// Memory keeps collections in process and is used by tests and by the
// development server in cmd/storaged. HTTPClient talks to any server that
// speaks the API below; NewHandler serves an ObjectStore with that API.
//
//	GET    /health
//	GET    /storage/{collection}?newer=<RFC3339Nano>  -> {"ids":[...],"timestamp":T}
//	GET    /storage/{collection}/{id}                 -> {"id","payload","modified"}
//	PUT    /storage/{collection}/{id}  {"payload"}    -> {"modified":T}
//	DELETE /storage/{collection}/{id}                 -> 204
//
// Missing objects are reported as 404 and surface as domain.ErrNotFound. When
// a token is configured every /storage request must carry it as a bearer
// token.
//
// The store never sees plaintext: client records carry only public keys and
// message contents are sealed envelopes.
package storage

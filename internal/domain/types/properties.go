package types

// Property names in the scalar property store.
const (
	PropAuthStatus = "authstatus"
	PropAuthCode   = "authcode"
	PropAuthBy     = "authby"
	PropSyncKey    = "synckey"
	PropPassword   = "password"
	PropLastPoll   = "lastpoll"
)

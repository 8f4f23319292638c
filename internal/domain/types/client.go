package types

import "time"

// ClientStatus says whether a device holds the account's sync key.
type ClientStatus string

const (
	ClientPending    ClientStatus = "pending"
	ClientAuthorised ClientStatus = "authorised"
)

// AuthLevelAll is the only authorisation level this client grants.
const AuthLevelAll = "all"

// Client is a device identity, either the local device (Self) or a peer.
type Client struct {
	ID              ClientID
	Name            string
	IdentityKey     X25519Public
	IdentityPrivate X25519Private // local device only
	Status          ClientStatus
	AuthLevel       string
	Version         string
	Self            bool
	ModifiedAt      time.Time
	Keys            []EphemeralKey
}

// Authorised reports whether the client may vouch for other devices.
func (c Client) Authorised() bool { return c.Status == ClientAuthorised }

// PublishedKeys returns the keys still available for new sessions.
func (c Client) PublishedKeys() []EphemeralKey {
	var out []EphemeralKey
	for _, k := range c.Keys {
		if k.Status == KeyPublished {
			out = append(out, k)
		}
	}
	return out
}

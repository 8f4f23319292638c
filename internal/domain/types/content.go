package types

// Content is the decrypted body of an envelope. The set of implementations is
// closed: AuthRequest and AuthResponse.
type Content interface {
	MessageType() MessageType
	content()
}

// AuthVerifier lets a responder check that the requester saw the same auth
// code without the code or password ever being sent.
type AuthVerifier struct {
	InnerSalt string `json:"innersalt"`
	Salt      string `json:"salt"`
	Digest    string `json:"digest"`
}

// AuthRequest is the clientauthrequest body.
type AuthRequest struct {
	ClientID ClientID     `json:"clientid"`
	Name     string       `json:"name"`
	Auth     AuthVerifier `json:"auth"`
}

// MessageType implements Content.
func (AuthRequest) MessageType() MessageType { return TypeAuthRequest }
func (AuthRequest) content() {}

// AuthStatus is the verdict carried by a response.
type AuthStatus string

const (
	AuthOkay AuthStatus = "okay"
	AuthFail AuthStatus = "fail"
)

// AuthResponse is the clientauthresponse body. SyncKey is only present when
// Status is AuthOkay.
type AuthResponse struct {
	ClientID ClientID   `json:"clientid"`
	Name     string     `json:"name"`
	Status   AuthStatus `json:"status"`
	Message  string     `json:"message"`
	SyncKey  string     `json:"synckey,omitempty"`
}

// MessageType implements Content.
func (AuthResponse) MessageType() MessageType { return TypeAuthResponse }
func (AuthResponse) content() {}

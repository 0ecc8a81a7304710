package transfer

import "github.com/golang-jwt/jwt/v5"

// StateClaims is the signed OAuth state carried through the Discord redirect.
type StateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

type TwitterStatus struct {
	Enabled                  bool   `json:"enabled"`
	State                    string `json:"state"`
	AwaitingConfirmationCode bool   `json:"awaitingConfirmationCode"`
	Account                  string `json:"account"`
}

type BlueskyStatus struct {
	Enabled bool   `json:"enabled"`
	Account string `json:"account,omitempty"`
}

type MeResponse struct {
	ID       string        `json:"id"`
	Username string        `json:"username"`
	Twitter  TwitterStatus `json:"twitter"`
	Bluesky  BlueskyStatus `json:"bluesky"`
}

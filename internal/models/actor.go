package models

import "github.com/golang-jwt/jwt/v5"

// ActorClaims identifies the acting user on state-changing requests.
// Tokens are issued by the platform's identity service; this API only
// verifies and reads them.
type ActorClaims struct {
	UserID   string `json:"uid"`
	UserType string `json:"utype"`
	jwt.RegisteredClaims
}

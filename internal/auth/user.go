package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeMagicLink = "magic-link"
	TokenTypeSession   = "session"
)

// MagicLinkClaims carry only the email; the role is resolved again when the link is used.
type MagicLinkClaims struct {
	Email string `json:"email"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

type SessionClaims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the only error verification ever returns.
var ErrInvalidToken = internal.ErrInvalidToken

type TokenConfig struct {
	MagicLinkSecret string
	SessionSecret   string
	MagicLinkTTL    time.Duration
	SessionTTL      time.Duration
}

// TokenService signs magic-link and session tokens with separate HS256 keys.
type TokenService struct {
	magicLinkSecret []byte
	sessionSecret   []byte
	magicLinkTTL    time.Duration
	sessionTTL      time.Duration
	now             func() time.Time
}

func NewTokenService(cfg TokenConfig) *TokenService {
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = 15 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 8 * time.Hour
	}
	return &TokenService{
		magicLinkSecret: []byte(cfg.MagicLinkSecret),
		sessionSecret:   []byte(cfg.SessionSecret),
		magicLinkTTL:    cfg.MagicLinkTTL,
		sessionTTL:      cfg.SessionTTL,
		now:             time.Now,
	}
}

// WithClock swaps the time source, for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

func (s *TokenService) SessionTTL() time.Duration {
	return s.sessionTTL
}

func (s *TokenService) IssueMagicLink(email string) (string, error) {
	now := s.now()
	claims := &MagicLinkClaims{
		Email: identity.NormalizeEmail(email),
		Type:  TokenTypeMagicLink,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.magicLinkTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return sign(claims, s.magicLinkSecret)
}

// VerifyMagicLink returns the email claim, or ErrInvalidToken for any failure.
func (s *TokenService) VerifyMagicLink(token string) (string, error) {
	claims := &MagicLinkClaims{}
	if err := s.parse(token, claims, s.magicLinkSecret); err != nil {
		return "", ErrInvalidToken
	}
	if claims.Type != TokenTypeMagicLink || claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

func (s *TokenService) IssueSession(user *identity.User) (string, error) {
	if user == nil {
		return "", errors.New("issue session: nil user")
	}
	now := s.now()
	claims := &SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role.String(),
		Name:   user.Name,
		Type:   TokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return sign(claims, s.sessionSecret)
}

// VerifySession returns the embedded identity, or ErrInvalidToken for any failure.
func (s *TokenService) VerifySession(token string) (*identity.User, error) {
	claims := &SessionClaims{}
	if err := s.parse(token, claims, s.sessionSecret); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != TokenTypeSession || claims.UserID == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	role, ok := identity.ParseRole(claims.Role)
	if !ok {
		return nil, ErrInvalidToken
	}
	return &identity.User{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  role,
		Name:  claims.Name,
	}, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

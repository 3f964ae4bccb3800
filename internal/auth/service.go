package auth

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
)

const (
	CallbackPath  = "/api/v1/auth/callback"
	notifyTimeout = 10 * time.Second
)

// Notifier delivers magic links. Delivery failures never fail the login request.
type Notifier interface {
	Send(ctx context.Context, to, link string, role identity.Role) error
}

type ServiceConfig struct {
	BaseURL string
	// ExposeLinks returns the link in the API response; never enable in production.
	ExposeLinks bool
}

// Service runs the passwordless login flow.
type Service struct {
	resolver *identity.Resolver
	tokens   *TokenService
	notifier Notifier
	limiter  *EmailLimiter
	cfg      ServiceConfig
	logger   *slog.Logger
}

func NewService(resolver *identity.Resolver, tokens *TokenService, notifier Notifier, limiter *EmailLimiter, cfg ServiceConfig, logger *slog.Logger) *Service {
	return &Service{
		resolver: resolver,
		tokens:   tokens,
		notifier: notifier,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
	}
}

// RequestMagicLink validates the address, issues a link and hands it to the notifier.
func (s *Service) RequestMagicLink(ctx context.Context, dto MagicLinkRequestDTO) (*MagicLinkResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	email := identity.NormalizeEmail(dto.Email)

	role, ok := s.resolver.ResolveRole(email)
	if !ok {
		s.logger.WarnContext(ctx, "magic link refused: email not authorized", "email", email)
		return nil, internal.ErrEmailNotAuthorized
	}

	if !s.limiter.Allow(email) {
		s.logger.WarnContext(ctx, "magic link refused: rate limited", "email", email)
		return nil, internal.NewRateLimitedError("too many login links requested, try again later")
	}

	link, err := s.buildLink(email)
	if err != nil {
		return nil, err
	}

	resp := &MagicLinkResponse{Message: "Magic link sent! Check your email to sign in."}

	sendCtx, cancel := internal.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.notifier.Send(sendCtx, email, link, role); err != nil {
		s.logger.ErrorContext(ctx, "magic link delivery failed", "email", email, "error", err)
		if s.cfg.ExposeLinks {
			resp.Message = "Email delivery failed. Use the link below to sign in."
		}
	} else {
		s.logger.InfoContext(ctx, "magic link sent", "email", email, "role", role)
	}

	if s.cfg.ExposeLinks {
		resp.MagicLink = link
	}
	return resp, nil
}

// IssueLink builds a link without delivering it, for operators.
func (s *Service) IssueLink(email string) (string, error) {
	email = identity.NormalizeEmail(email)
	if !s.resolver.IsAuthorized(email) {
		return "", internal.ErrEmailNotAuthorized
	}
	return s.buildLink(email)
}

// CompleteLogin exchanges a magic-link token for a session. The role is resolved against the
// current allowlists, so a removed address cannot finish a login started earlier.
func (s *Service) CompleteLogin(ctx context.Context, token string) (*identity.User, string, error) {
	if token == "" {
		return nil, "", internal.NewValidationFieldError("token", "token is required", internal.ErrCodeMissingParameter)
	}

	email, err := s.tokens.VerifyMagicLink(token)
	if err != nil {
		s.logger.WarnContext(ctx, "magic link rejected")
		return nil, "", ErrInvalidToken
	}

	role, ok := s.resolver.ResolveRole(email)
	if !ok {
		s.logger.WarnContext(ctx, "login refused: email no longer authorized", "email", email)
		return nil, "", internal.ErrEmailNotAuthorized
	}

	user := identity.NewUser(email, role)
	session, err := s.tokens.IssueSession(user)
	if err != nil {
		return nil, "", internal.NewInternalError("failed to issue session", err)
	}

	s.logger.InfoContext(ctx, "user signed in", "email", user.Email, "role", user.Role)
	return user, session, nil
}

func (s *Service) buildLink(email string) (string, error) {
	token, err := s.tokens.IssueMagicLink(email)
	if err != nil {
		return "", internal.NewInternalError("failed to issue magic link", err)
	}
	return s.cfg.BaseURL + CallbackPath + "?token=" + url.QueryEscape(token), nil
}

package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/frahmantamala/procurement-workflow/internal/transport"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

const SessionCookieName = "session-token"

// Gateway turns the session cookie into an authenticated identity.
type Gateway struct {
	*transport.BaseHandler
	tokens *TokenService
}

func NewGateway(tokens *TokenService, lg *slog.Logger) *Gateway {
	return &Gateway{
		BaseHandler: transport.NewBaseHandler(lg),
		tokens:      tokens,
	}
}

// Authenticate verifies the session cookie. Missing, expired and forged tokens all report false.
func (g *Gateway) Authenticate(r *http.Request) (*identity.User, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	user, err := g.tokens.VerifySession(cookie.Value)
	if err != nil {
		return nil, false
	}
	return user, true
}

func (g *Gateway) SetSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(g.tokens.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession overwrites the cookie with Max-Age=0.
func (g *Gateway) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireSession rejects unauthenticated calls and puts the user into the request context.
func (g *Gateway) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := g.Authenticate(r)
		if !ok {
			g.HandleServiceError(w, internal.ErrAuthenticationRequired)
			return
		}

		ctx := internal.ContextWithUser(r.Context(), user)
		ctx = logger.With(ctx, "user_email", user.Email, "user_role", user.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

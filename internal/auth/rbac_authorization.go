package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
)

// RequireRole lets through users holding exactly one of roles. Use after RequireSession.
func (g *Gateway) RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	denied := internal.NewForbiddenError(
		fmt.Sprintf("this action requires role: %s", strings.Join(names, " or ")),
		internal.ErrCodeRoleRequired,
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := internal.UserFromContext(r.Context())
			if !ok {
				g.HandleServiceError(w, internal.ErrAuthenticationRequired)
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			g.Logger.WarnContext(r.Context(), "access denied: role not permitted",
				"user_email", user.Email,
				"user_role", user.Role,
				"required_roles", names,
				"path", r.URL.Path)
			g.HandleServiceError(w, denied)
		})
	}
}

// RequireMinimumRole uses the role ordering, e.g. purchaser-or-above.
func (g *Gateway) RequireMinimumRole(min identity.Role) func(http.Handler) http.Handler {
	denied := internal.NewForbiddenError(
		fmt.Sprintf("this action requires role %s or higher", min),
		internal.ErrCodeRoleRequired,
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := internal.UserFromContext(r.Context())
			if !ok {
				g.HandleServiceError(w, internal.ErrAuthenticationRequired)
				return
			}
			if !user.Role.AtLeast(min) {
				g.Logger.WarnContext(r.Context(), "access denied: role too low",
					"user_email", user.Email,
					"user_role", user.Role,
					"minimum_role", min)
				g.HandleServiceError(w, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

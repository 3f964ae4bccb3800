package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/frahmantamala/procurement-workflow/internal/transport"
)

type ServiceAPI interface {
	RequestMagicLink(ctx context.Context, dto MagicLinkRequestDTO) (*MagicLinkResponse, error)
	CompleteLogin(ctx context.Context, token string) (*identity.User, string, error)
}

type HandlerConfig struct {
	SuccessRedirect string
	LoginPath       string
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Gateway *Gateway
	cfg     HandlerConfig
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, gateway *Gateway, cfg HandlerConfig) *Handler {
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/requests"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Gateway:     gateway,
		cfg:         cfg,
	}
}

// RequestMagicLink handles POST /auth/magic-link
func (h *Handler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var dto MagicLinkRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp, err := h.Service.RequestMagicLink(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// CallbackRedirect handles GET /auth/callback?token=... from the emailed link.
func (h *Handler) CallbackRedirect(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.redirectToLogin(w, r, "missing-token")
		return
	}

	_, session, err := h.Service.CompleteLogin(r.Context(), token)
	if err != nil {
		if errors.Is(err, internal.ErrEmailNotAuthorized) {
			h.redirectToLogin(w, r, "unauthorized-email")
			return
		}
		h.redirectToLogin(w, r, "invalid-token")
		return
	}

	h.Gateway.SetSession(w, session)
	http.Redirect(w, r, h.cfg.SuccessRedirect, http.StatusSeeOther)
}

// Callback handles POST /auth/callback for programmatic clients.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var dto CallbackRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	user, session, err := h.Service.CompleteLogin(r.Context(), dto.Token)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Gateway.SetSession(w, session)
	h.WriteJSON(w, http.StatusOK, CallbackResponse{
		Message:    "Login successful",
		User:       user,
		RedirectTo: h.cfg.SuccessRedirect,
	})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Gateway.ClearSession(w)
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// LogoutRedirect handles GET /auth/logout
func (h *Handler) LogoutRedirect(w http.ResponseWriter, r *http.Request) {
	h.Gateway.ClearSession(w)
	http.Redirect(w, r, h.cfg.LoginPath, http.StatusSeeOther)
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrAuthenticationRequired)
		return
	}
	h.WriteJSON(w, http.StatusOK, MeResponse{User: user})
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, reason string) {
	target := h.cfg.LoginPath + "?error=" + url.QueryEscape(reason)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

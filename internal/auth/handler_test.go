package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/auth"
	"github.com/frahmantamala/procurement-workflow/internal/transport"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

var _ = Describe("Handler", func() {
	var (
		tokens   *auth.TokenService
		gateway  *auth.Gateway
		service  *auth.Service
		handler  *auth.Handler
		notifier *fakeNotifier
	)

	BeforeEach(func() {
		notifier = &fakeNotifier{}
		tokens = newTokenService()
		gateway = auth.NewGateway(tokens, logger.Discard())
		service = auth.NewService(testResolver(), tokens, notifier, auth.NewEmailLimiter(10),
			auth.ServiceConfig{BaseURL: "http://localhost:8080", ExposeLinks: true}, logger.Discard())
		handler = auth.NewHandler(transport.NewBaseHandler(logger.Discard()), service, gateway, auth.HandlerConfig{})
	})

	sessionCookie := func(w *httptest.ResponseRecorder) *http.Cookie {
		for _, c := range w.Result().Cookies() {
			if c.Name == auth.SessionCookieName {
				return c
			}
		}
		return nil
	}

	Describe("POST /auth/magic-link", func() {
		It("returns the link outside production", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/magic-link", strings.NewReader(`{"email":"buyer@company.com"}`))
			w := httptest.NewRecorder()

			handler.RequestMagicLink(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp auth.MagicLinkResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.MagicLink).To(HavePrefix("http://localhost:8080/api/v1/auth/callback?token="))
		})

		It("answers 403 for unknown addresses", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/magic-link", strings.NewReader(`{"email":"x@gmail.com"}`))
			w := httptest.NewRecorder()

			handler.RequestMagicLink(w, req)
			Expect(w.Code).To(Equal(http.StatusForbidden))
		})

		It("answers 400 for a broken body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/magic-link", strings.NewReader(`{`))
			w := httptest.NewRecorder()

			handler.RequestMagicLink(w, req)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /auth/callback", func() {
		It("sets the session cookie and redirects", func() {
			link, err := service.IssueLink("buyer@company.com")
			Expect(err).NotTo(HaveOccurred())
			u, _ := url.Parse(link)

			w := httptest.NewRecorder()
			handler.CallbackRedirect(w, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))

			Expect(w.Code).To(Equal(http.StatusSeeOther))
			Expect(w.Header().Get("Location")).To(Equal("/requests"))
			cookie := sessionCookie(w)
			Expect(cookie).NotTo(BeNil())

			user, err := tokens.VerifySession(cookie.Value)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Email).To(Equal("buyer@company.com"))
		})

		DescribeTable("failure redirects",
			func(query, reason string) {
				w := httptest.NewRecorder()
				handler.CallbackRedirect(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/callback"+query, nil))

				Expect(w.Code).To(Equal(http.StatusSeeOther))
				Expect(w.Header().Get("Location")).To(Equal("/login?error=" + reason))
				Expect(sessionCookie(w)).To(BeNil())
			},
			Entry("missing token", "", "missing-token"),
			Entry("bad token", "?token=abc", "invalid-token"),
		)

		It("redirects unauthorized addresses with their own reason", func() {
			token, err := tokens.IssueMagicLink("stranger@gmail.com")
			Expect(err).NotTo(HaveOccurred())

			w := httptest.NewRecorder()
			handler.CallbackRedirect(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/callback?token="+token, nil))
			Expect(w.Header().Get("Location")).To(Equal("/login?error=unauthorized-email"))
		})
	})

	Describe("POST /auth/callback", func() {
		It("returns the user and the redirect target", func() {
			link, err := service.IssueLink("ceo@company.com")
			Expect(err).NotTo(HaveOccurred())
			body, _ := json.Marshal(auth.CallbackRequestDTO{Token: tokenFromLink(link)})

			w := httptest.NewRecorder()
			handler.Callback(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/callback", strings.NewReader(string(body))))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp auth.CallbackResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.User.Email).To(Equal("ceo@company.com"))
			Expect(resp.RedirectTo).To(Equal("/requests"))
			Expect(sessionCookie(w)).NotTo(BeNil())
		})

		It("answers 401 with a generic message for a bad token", func() {
			w := httptest.NewRecorder()
			handler.Callback(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/callback", strings.NewReader(`{"token":"x.y.z"}`)))

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(w.Body.String()).To(ContainSubstring("invalid or expired token"))
		})
	})

	Describe("logout and me", func() {
		It("clears the cookie", func() {
			w := httptest.NewRecorder()
			handler.Logout(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Set-Cookie")).To(ContainSubstring("Max-Age=0"))

			w = httptest.NewRecorder()
			handler.LogoutRedirect(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/logout", nil))
			Expect(w.Code).To(Equal(http.StatusSeeOther))
			Expect(w.Header().Get("Location")).To(Equal("/login"))
		})

		It("returns the user from the context", func() {
			link, err := service.IssueLink("buyer@company.com")
			Expect(err).NotTo(HaveOccurred())
			user, _, err := service.CompleteLogin(context.Background(), tokenFromLink(link))
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			req = req.WithContext(internal.ContextWithUser(req.Context(), user))
			w := httptest.NewRecorder()
			handler.Me(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"email":"buyer@company.com"`))
		})
	})
})

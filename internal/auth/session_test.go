package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/auth"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

var _ = Describe("Gateway", func() {
	var (
		tokens  *auth.TokenService
		gateway *auth.Gateway
		ceo     *identity.User
	)

	BeforeEach(func() {
		tokens = newTokenService()
		gateway = auth.NewGateway(tokens, logger.Discard())
		ceo = identity.NewUser("ceo@company.com", identity.RoleCEO)
	})

	requestWithSession := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
		return req
	}

	It("sets the session cookie with the expected attributes", func() {
		w := httptest.NewRecorder()
		gateway.SetSession(w, "tok")

		header := w.Header().Get("Set-Cookie")
		Expect(header).To(ContainSubstring("session-token=tok"))
		Expect(header).To(ContainSubstring("Path=/"))
		Expect(header).To(ContainSubstring("Max-Age=28800"))
		Expect(header).To(ContainSubstring("HttpOnly"))
		Expect(header).To(ContainSubstring("Secure"))
		Expect(header).To(ContainSubstring("SameSite=Lax"))
	})

	It("clears the cookie with Max-Age=0", func() {
		w := httptest.NewRecorder()
		gateway.ClearSession(w)

		header := w.Header().Get("Set-Cookie")
		Expect(header).To(ContainSubstring("session-token=;"))
		Expect(header).To(ContainSubstring("Max-Age=0"))
	})

	It("authenticates a valid session cookie", func() {
		token, err := tokens.IssueSession(ceo)
		Expect(err).NotTo(HaveOccurred())

		user, ok := gateway.Authenticate(requestWithSession(token))
		Expect(ok).To(BeTrue())
		Expect(user.Email).To(Equal("ceo@company.com"))
		Expect(user.Role).To(Equal(identity.RoleCEO))
	})

	It("treats missing, forged and expired cookies as unauthenticated", func() {
		_, ok := gateway.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(ok).To(BeFalse())

		_, ok = gateway.Authenticate(requestWithSession("forged"))
		Expect(ok).To(BeFalse())

		expired, err := tokens.WithClock(func() time.Time { return time.Now().Add(-10 * time.Hour) }).IssueSession(ceo)
		Expect(err).NotTo(HaveOccurred())
		_, ok = gateway.Authenticate(requestWithSession(expired))
		Expect(ok).To(BeFalse())
	})

	Describe("middleware", func() {
		var reached *identity.User

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached, _ = internal.UserFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})

		BeforeEach(func() {
			reached = nil
		})

		It("answers 401 without a session", func() {
			w := httptest.NewRecorder()
			gateway.RequireSession(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			var body map[string]map[string]interface{}
			Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
			Expect(body["error"]["code"]).To(Equal(string(internal.ErrCodeAuthenticationRequired)))
			Expect(reached).To(BeNil())
		})

		It("passes the user down the chain", func() {
			token, err := tokens.IssueSession(ceo)
			Expect(err).NotTo(HaveOccurred())

			w := httptest.NewRecorder()
			gateway.RequireSession(next).ServeHTTP(w, requestWithSession(token))

			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(reached).NotTo(BeNil())
			Expect(reached.Email).To(Equal(ceo.Email))
		})

		It("answers 403 naming the required role", func() {
			purchaser := identity.NewUser("buyer@company.com", identity.RolePurchaser)
			token, err := tokens.IssueSession(purchaser)
			Expect(err).NotTo(HaveOccurred())

			w := httptest.NewRecorder()
			chain := gateway.RequireSession(gateway.RequireRole(identity.RoleCEO)(next))
			chain.ServeHTTP(w, requestWithSession(token))

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Body.String()).To(ContainSubstring("requires role: ceo"))
			Expect(reached).To(BeNil())
		})

		It("uses the role ordering for minimum-role gates", func() {
			token, err := tokens.IssueSession(ceo)
			Expect(err).NotTo(HaveOccurred())

			w := httptest.NewRecorder()
			chain := gateway.RequireSession(gateway.RequireMinimumRole(identity.RolePurchaser)(next))
			chain.ServeHTTP(w, requestWithSession(token))
			Expect(w.Code).To(Equal(http.StatusNoContent))

			requester := identity.NewUser("someone@company.com", identity.RoleRequester)
			token, err = tokens.IssueSession(requester)
			Expect(err).NotTo(HaveOccurred())

			w = httptest.NewRecorder()
			chain.ServeHTTP(w, requestWithSession(token))
			Expect(w.Code).To(Equal(http.StatusForbidden))
		})
	})
})

package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gocloud.dev/blob/memblob"

	"github.com/frahmantamala/procurement-workflow/internal/auth"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/frahmantamala/procurement-workflow/internal/notify"
	"github.com/frahmantamala/procurement-workflow/internal/request"
	"github.com/frahmantamala/procurement-workflow/internal/request/kv"
	"github.com/frahmantamala/procurement-workflow/internal/store"
	"github.com/frahmantamala/procurement-workflow/internal/transport"
	"github.com/frahmantamala/procurement-workflow/internal/transport/rest"
	"github.com/frahmantamala/procurement-workflow/internal/transport/swagger"
	"github.com/frahmantamala/procurement-workflow/internal/upload"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

const specPath = "../../../api/openapi.yml"

type fixture struct {
	router *chi.Mux
	tokens *auth.TokenService
	kv     store.KV
}

func newFixture(devRoutes bool, checks map[string]rest.Pinger) *fixture {
	lg := logger.Discard()
	base := transport.NewBaseHandler(lg)
	kvStore := store.NewMemoryKV()

	resolver := identity.NewResolver(identity.RoleConfig{
		CEOEmails:          []string{"ceo@company.com"},
		PurchaserEmails:    []string{"buyer@company.com"},
		OrganizationDomain: "company.com",
	})
	tokens := auth.NewTokenService(auth.TokenConfig{
		MagicLinkSecret: strings.Repeat("m", 32),
		SessionSecret:   strings.Repeat("s", 32),
	})
	gateway := auth.NewGateway(tokens, lg)
	authService := auth.NewService(resolver, tokens, notify.NewLogNotifier(lg), auth.NewEmailLimiter(5),
		auth.ServiceConfig{BaseURL: "http://localhost:8080", ExposeLinks: true}, lg)

	requestService := request.NewService(kv.NewRequestRepository(kvStore, lg), nil, lg)
	blobs := upload.NewStore(memblob.OpenBucket(nil), "http://localhost:8080")

	if checks == nil {
		checks = map[string]rest.Pinger{"store": kvStore}
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Auth:    auth.NewHandler(base, authService, gateway, auth.HandlerConfig{}),
		Gateway: gateway,
		Request: request.NewHandler(base, requestService, "company.com"),
		Upload:  upload.NewHandler(base, blobs, 10<<20),
		Health:  rest.NewHealthHandler(checks),
	}, rest.RouterConfig{
		OpenAPIPath: specPath,
		DevRoutes:   devRoutes,
	}, lg)

	return &fixture{router: router, tokens: tokens, kv: kvStore}
}

func (f *fixture) do(method, path, email string, role identity.Role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		token, err := f.tokens.IssueSession(identity.NewUser(email, role))
		Expect(err).NotTo(HaveOccurred())
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

var _ = Describe("Router", func() {
	It("documents every mounted route in the OpenAPI spec", func() {
		doc, err := swagger.LoadSpec(context.Background(), specPath)
		Expect(err).NotTo(HaveOccurred())

		f := newFixture(true, nil)
		var missing []string
		err = chi.Walk(f.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			if !strings.HasPrefix(route, rest.APIPrefix) {
				return nil
			}
			path := strings.TrimPrefix(route, rest.APIPrefix)
			if len(path) > 1 {
				path = strings.TrimSuffix(path, "/")
			}
			item := doc.Paths.Find(path)
			if item == nil || item.GetOperation(method) == nil {
				missing = append(missing, method+" "+path)
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(missing).To(BeEmpty())
	})

	It("serves the raw OpenAPI document", func() {
		w := newFixture(false, nil).do(http.MethodGet, swagger.SpecPath, "", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("openapi: 3.0.3"))
	})

	It("hides the seeding route unless enabled", func() {
		w := newFixture(false, nil).do(http.MethodPost, "/api/v1/dev/sample-data", "", "", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))

		w = newFixture(true, nil).do(http.MethodPost, "/api/v1/dev/sample-data", "", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("requires a session for request routes", func() {
		f := newFixture(false, nil)
		Expect(f.do(http.MethodGet, "/api/v1/requests", "", "", "").Code).To(Equal(http.StatusUnauthorized))
		Expect(f.do(http.MethodGet, "/api/v1/requests", "alice@company.com", identity.RoleRequester, "").Code).To(Equal(http.StatusOK))
		Expect(f.do(http.MethodGet, "/api/v1/auth/me", "", "", "").Code).To(Equal(http.StatusUnauthorized))
	})

	DescribeTable("gates workflow routes by role",
		func(method, path string, role identity.Role, allowed bool) {
			f := newFixture(false, nil)
			w := f.do(method, path, "someone@company.com", role, `{}`)
			if allowed {
				Expect(w.Code).NotTo(Equal(http.StatusForbidden))
			} else {
				Expect(w.Code).To(Equal(http.StatusForbidden))
			}
		},
		Entry("requester cannot process", http.MethodPut, "/api/v1/requests/R/process", identity.RoleRequester, false),
		Entry("ceo cannot process", http.MethodPost, "/api/v1/requests/R/process", identity.RoleCEO, false),
		Entry("purchaser can process", http.MethodPut, "/api/v1/requests/R/process", identity.RolePurchaser, true),
		Entry("purchaser cannot approve", http.MethodPut, "/api/v1/requests/R/approve", identity.RolePurchaser, false),
		Entry("ceo can approve", http.MethodPost, "/api/v1/requests/R/approve", identity.RoleCEO, true),
		Entry("requester cannot upload", http.MethodPost, "/api/v1/uploads", identity.RoleRequester, false),
		Entry("ceo can upload", http.MethodPost, "/api/v1/uploads", identity.RoleCEO, true),
	)

	It("answers unknown routes with a JSON 404", func() {
		w := newFixture(false, nil).do(http.MethodGet, "/api/v1/nothing", "", "", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))
	})
})

var _ = Describe("Health", func() {
	It("reports healthy components", func() {
		w := newFixture(false, nil).do(http.MethodGet, "/api/v1/health", "", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp rest.HealthResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Status).To(Equal(rest.HealthHealthy))
		Expect(resp.Components).To(HaveKey("store"))
	})

	It("turns 503 when one component fails", func() {
		checks := map[string]rest.Pinger{
			"store": store.NewMemoryKV(),
			"nats": rest.PingFunc(func(context.Context) error {
				return errors.New("disconnected")
			}),
		}
		w := newFixture(false, checks).do(http.MethodGet, "/api/v1/health", "", "", "")
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))

		var resp rest.HealthResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Components["nats"].Status).To(Equal(rest.HealthUnhealthy))
		Expect(resp.Components["nats"].Message).To(Equal("disconnected"))
		Expect(resp.Components["store"].Status).To(Equal(rest.HealthHealthy))
	})

	It("answers the liveness probe", func() {
		w := newFixture(false, nil).do(http.MethodGet, "/api/v1/ping", "", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})
})

package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/procurement-workflow/internal/transport/middleware"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into a JSON 500 without leaking the panic value", func() {
		h := middleware.RecoveryMiddleware(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("database password is hunter2")
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring(`"INTERNAL_ERROR"`))
		Expect(w.Body.String()).NotTo(ContainSubstring("hunter2"))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	var (
		buf *bytes.Buffer
		lg  *slog.Logger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		lg = slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	})

	It("masks tokens in bodies, queries and cookies but passes the body on intact", func() {
		var seen string
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			seen = string(b)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"message":"ok","magicLink":"http://x/cb?token=abc"}`))
		}))

		body := `{"token":"secret-jwt","email":"a@company.com"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/callback?token=query-jwt", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cookie", "session-token=cookie-jwt")
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(seen).To(Equal(body))
		logged := buf.String()
		Expect(logged).NotTo(ContainSubstring("secret-jwt"))
		Expect(logged).NotTo(ContainSubstring("query-jwt"))
		Expect(logged).NotTo(ContainSubstring("cookie-jwt"))
		Expect(logged).NotTo(ContainSubstring("token=abc"))
		Expect(logged).To(ContainSubstring("a@company.com"))
	})

	It("replays large bodies in full", func() {
		var n int
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			n = len(b)
		}))
		payload := `{"note":"` + strings.Repeat("x", 10000) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(n).To(Equal(len(payload)))
	})

	It("logs client errors at warn level", func() {
		h := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		var last map[string]interface{}
		Expect(json.Unmarshal([]byte(lines[len(lines)-1]), &last)).To(Succeed())
		Expect(last["level"]).To(Equal("WARN"))
		Expect(last["status_code"]).To(BeNumerically("==", http.StatusConflict))
	})
})

var _ = Describe("RequestID", func() {
	It("echoes a caller supplied trace id", func() {
		h := middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceHeader, "trace-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Header().Get(middleware.TraceHeader)).To(Equal("trace-123"))
	})

	It("generates one otherwise", func() {
		h := middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(w.Header().Get(middleware.TraceHeader)).NotTo(BeEmpty())
	})
})

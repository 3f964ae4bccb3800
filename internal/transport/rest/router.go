package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/auth"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/frahmantamala/procurement-workflow/internal/request"
	"github.com/frahmantamala/procurement-workflow/internal/transport/middleware"
	"github.com/frahmantamala/procurement-workflow/internal/transport/swagger"
	"github.com/frahmantamala/procurement-workflow/internal/upload"
)

// APIPrefix matches the OpenAPI server url.
const APIPrefix = "/api/v1"

var errRouteNotFound = internal.NewNotFoundError("route not found", internal.ErrCodeNotAvailable)

type Handlers struct {
	Auth    *auth.Handler
	Gateway *auth.Gateway
	Request *request.Handler
	Upload  *upload.Handler
	Health  *HealthHandler
}

type RouterConfig struct {
	AllowedOrigins []string
	OpenAPIPath    string
	// DevRoutes mounts /dev/sample-data. Never set in production.
	DevRoutes bool
}

func RegisterAllRoutes(router chi.Router, h Handlers, cfg RouterConfig, logger *slog.Logger) {
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", middleware.TraceHeader},
			ExposedHeaders:   []string{middleware.TraceHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if cfg.OpenAPIPath != "" {
		router.Get(swagger.SpecPath, swagger.SpecHandler(cfg.OpenAPIPath))
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route(APIPrefix, func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/magic-link", h.Auth.RequestMagicLink)
			ar.Get("/callback", h.Auth.CallbackRedirect)
			ar.Post("/callback", h.Auth.Callback)
			ar.Post("/logout", h.Auth.Logout)
			ar.Get("/logout", h.Auth.LogoutRedirect)
			ar.With(h.Gateway.RequireSession).Get("/me", h.Auth.Me)
		})

		if cfg.DevRoutes {
			r.Post("/dev/sample-data", h.Request.SeedSampleData)
		}

		// everything below needs a session
		r.Group(func(pr chi.Router) {
			pr.Use(h.Gateway.RequireSession)

			pr.Route("/requests", func(rr chi.Router) {
				rr.Get("/", h.Request.List)
				rr.Post("/", h.Request.Create)
				rr.Get("/{id}", h.Request.Get)
				rr.Put("/{id}", h.Request.Update)
				rr.Delete("/{id}", h.Request.Delete)
				rr.Post("/{id}/submit", h.Request.Submit)

				rr.Group(func(pur chi.Router) {
					pur.Use(h.Gateway.RequireRole(identity.RolePurchaser))
					pur.Put("/{id}/process", h.Request.ProcessItem)
					pur.Post("/{id}/process", h.Request.SubmitForApproval)
				})

				rr.Group(func(cr chi.Router) {
					cr.Use(h.Gateway.RequireRole(identity.RoleCEO))
					cr.Put("/{id}/approve", h.Request.ApproveItem)
					cr.Post("/{id}/approve", h.Request.CompleteReview)
				})
			})

			if h.Upload != nil {
				pr.With(h.Gateway.RequireMinimumRole(identity.RolePurchaser)).Post("/uploads", h.Upload.Upload)
				pr.Get("/uploads/{key}", h.Upload.Serve)
			}
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.Gateway.HandleServiceError(w, errRouteNotFound)
	})
}

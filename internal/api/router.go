package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/orbitcrm/orbit/internal/api/handler"
	"github.com/orbitcrm/orbit/internal/api/middleware"
	"github.com/orbitcrm/orbit/internal/auth"
	"github.com/orbitcrm/orbit/internal/gateway"
	"github.com/orbitcrm/orbit/internal/metrics"
	"github.com/orbitcrm/orbit/internal/onboarding"
	"github.com/orbitcrm/orbit/internal/organization"
	"github.com/orbitcrm/orbit/internal/principal"
	"github.com/orbitcrm/orbit/internal/ratelimit"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger      handler.DBPinger
	Version       string
	AuthService   *auth.Service
	Tokens        *auth.TokenManager
	KeyRepo       auth.KeyRepository
	OrgRepo       organization.Repository
	PrincipalRepo principal.Repository
	Gateway       *gateway.Service
	Onboarding    *onboarding.Service
	Limiter       *ratelimit.Limiter
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(metrics.Middleware)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)
	r.Method("GET", "/metrics", metrics.Handler())

	signupHandler := handler.NewSignupHandler(deps.Onboarding, deps.Tokens)
	r.Post("/v1/signup", signupHandler.ServeHTTP)

	gatewayHandler := handler.NewGatewayHandler(deps.Gateway)
	keyHandler := handler.NewAPIKeyHandler(deps.AuthService, deps.KeyRepo)
	orgHandler := handler.NewOrganizationHandler(deps.OrgRepo)
	principalHandler := handler.NewPrincipalHandler(deps.PrincipalRepo)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.AuthService))
		r.Use(middleware.RateLimit(deps.Limiter))

		r.With(middleware.RequireVerbScope()).HandleFunc("/v1/data", gatewayHandler.ServeHTTP)

		r.Route("/v1/keys", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Post("/", keyHandler.Create)
			r.Get("/", keyHandler.List)
			r.Delete("/{id}", keyHandler.Revoke)
		})

		r.With(middleware.RequireMaster()).Post("/v1/master/keys", keyHandler.Provision)

		r.Route("/v1/organization", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/", orgHandler.Get)
			r.Patch("/", orgHandler.UpdateSettings)
		})

		r.Route("/v1/principals", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/", principalHandler.List)
			r.Patch("/{id}", principalHandler.Update)
		})
	})

	return r
}

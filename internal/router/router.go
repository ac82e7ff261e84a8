package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-user-template/internal/config"
	"go-user-template/internal/handler"
	"go-user-template/internal/metrics"
	"go-user-template/internal/middleware"
)

type Handlers struct {
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler
	Users  *handler.UserHandler
	Groups *handler.GroupHandler
	Audit  *handler.AuditHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Live)
	r.Get("/health/ready", h.Health.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)

			protected.Route("/users", func(users chi.Router) {
				users.Post("/", h.Users.Create)
				users.Get("/", h.Users.List)
				users.Get("/active", h.Users.ListActive)
				users.Get("/search", h.Users.Search)
				users.Get("/{id}", h.Users.Get)
				users.Put("/{id}", h.Users.Update)
				users.Delete("/{id}", h.Users.Delete)
				users.Patch("/{id}/balance", h.Users.UpdateBalance)
				users.Get("/{id}/api", h.Users.GetRemote)
				users.Patch("/{id}/balance/api", h.Users.UpdateBalanceRemote)
			})

			protected.Get("/groups", h.Groups.List)
			protected.Get("/groups/{id}/users", h.Groups.Users)
			protected.Get("/groups/{id}/roles", h.Groups.Roles)

			protected.Get("/audit", h.Audit.List)
		})
	})

	return r
}

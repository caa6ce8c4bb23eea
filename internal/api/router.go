package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Fantasim/svgpages/internal/api/handlers"
	"github.com/Fantasim/svgpages/internal/api/middleware"
	"github.com/Fantasim/svgpages/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter creates and configures the Chi router with all middleware and routes.
// Nothing reachable from the router mutates cfg or deps after this call.
func NewRouter(cfg *config.Config, deps handlers.PageDeps) chi.Router {
	r := chi.NewRouter()

	// Middleware stack (order matters)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.SecurityHeaders)

	names := []string{"realIP", "recoverer", "requestLogging", "securityHeaders"}
	if cfg.RateLimitRPS > 0 {
		r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware)
		names = append(names, "rateLimit")
	}

	slog.Info("router initialized",
		"middleware", names,
		"index", cfg.Index,
		"redirectPermanent", cfg.RedirectPermanent,
	)

	r.Get("/", handlers.RootRedirectHandler(cfg.Index, cfg.RedirectPermanent))
	r.Get("/{page}", handlers.PageHandler(deps))

	// A single route, not a mounted /api subrouter: /api itself stays a page.
	r.Get("/api/health", handlers.HealthHandler(deps.Resolver.Root(), Version))

	return r
}

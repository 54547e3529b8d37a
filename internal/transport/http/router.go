package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-onboarding/internal/config"
	"github.com/go-onboarding/internal/domain"
	"github.com/go-onboarding/internal/transport/http/handler"
	appmiddleware "github.com/go-onboarding/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds the application router. The returned stop function
// releases the rate limiter's background goroutine.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, func()) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		deps.Logger.Warn().Msg("JWT provider not configured, onboarding routes are unauthenticated")
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// Every login attempt reaches the remote provider: 2 requests/second, burst of 5.
	loginRL := appmiddleware.NewRateLimiter(rate.Limit(2), 5)

	healthH := handler.NewHealthHandler(deps.Ready, deps.Logger)
	onbH := handler.NewOnboardingHandler(deps.Onboarding, deps.Logger)
	acctH := handler.NewAccountHandler(deps.Pool)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Check)

		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(loginRL.Limit).Post("/onboarding", onbH.Start)
			r.Get("/onboarding/{id}", onbH.Get)
			r.With(loginRL.Limit).Post("/onboarding/{id}/code", onbH.SubmitCode)
			r.Post("/onboarding/{id}/cancel", onbH.Cancel)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/accounts/{username}", acctH.Get)
			})
		})
	})

	return r, loginRL.Stop
}

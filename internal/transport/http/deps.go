package http

import (
	"github.com/go-onboarding/internal/application/onboarding"
	"github.com/go-onboarding/internal/application/pool"
	jwtinfra "github.com/go-onboarding/internal/infrastructure/jwt"
	"github.com/go-onboarding/internal/transport/http/handler"
	"github.com/rs/zerolog"
)

// Deps holds the application services and shared infrastructure for the router.
type Deps struct {
	Onboarding  onboarding.Service
	Pool        pool.Service
	JWTProvider *jwtinfra.Provider     // nil disables authentication
	Ready       handler.ReadinessCheck // nil reports ready unconditionally
	Logger      zerolog.Logger
}

package onboarding

import (
	"context"
	"fmt"

	"github.com/go-onboarding/internal/domain"
)

// Provider is a client of the remote account provider. A Provider carries the
// state of one login conversation and is not shared between operations.
//
// Login reports blocking conditions by returning errors wrapping
// domain.ErrChallengeRequired or domain.ErrTwoFactorRequired.
type Provider interface {
	SetProxy(proxy string) error
	SetChallengeCodeHandler(h domain.ChallengeCodeHandler)
	Login(ctx context.Context, username, password string) (bool, error)
	TwoFactorLogin(ctx context.Context, code string) (bool, error)
	ResolveChallenge(ctx context.Context, code string) (bool, error)
}

// ProviderFactory returns a fresh Provider for each login conversation.
type ProviderFactory func() Provider

// abortOnChallenge never blocks waiting for a code: it records the request
// and aborts the login so the session can be suspended.
func (s *service) abortOnChallenge(sessionID string) domain.ChallengeCodeHandler {
	return func(ctx context.Context, _ string, method domain.ChallengeMethod) (string, error) {
		s.events.Append(ctx, sessionID, fmt.Sprintf("Challenge detected (method: %s). Waiting for the code from the interface...", methodLabel(method)))
		return "", fmt.Errorf("awaiting code from user: %w", domain.ErrChallengeRequired)
	}
}

// supplyCode answers the provider with a code the user already submitted.
func (s *service) supplyCode(sessionID, code string) domain.ChallengeCodeHandler {
	return func(ctx context.Context, _ string, method domain.ChallengeMethod) (string, error) {
		s.events.Append(ctx, sessionID, fmt.Sprintf("Provider requested the code via method: %s", methodLabel(method)))
		return code, nil
	}
}

func methodLabel(m domain.ChallengeMethod) string {
	if m == "" {
		return "unknown"
	}
	return string(m)
}

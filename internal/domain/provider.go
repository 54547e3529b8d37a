package domain

import "context"

// ChallengeMethod is the delivery channel the provider chose for a challenge code.
type ChallengeMethod string

const (
	ChallengeMethodEmail ChallengeMethod = "email"
	ChallengeMethodSMS   ChallengeMethod = "sms"
)

// ChallengeCodeHandler is consulted when the provider solicits a challenge
// code during login. Returning an error aborts the login with that error.
type ChallengeCodeHandler func(ctx context.Context, username string, method ChallengeMethod) (string, error)

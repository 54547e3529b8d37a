package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
)

// Signals raised by a remote account provider. They are suspension points of
// the login flow, not failures.
var (
	ErrChallengeRequired = errors.New("challenge required")
	ErrTwoFactorRequired = errors.New("two-factor required")
	ErrInvalidProxy      = errors.New("invalid proxy")
)

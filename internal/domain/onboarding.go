package domain

import "time"

// OnboardingStatus is the phase of an onboarding attempt. Only INIT and
// NEED_CODE are ever persisted; DONE and CANCELED manifest as deletion.
type OnboardingStatus string

const (
	StatusInit     OnboardingStatus = "INIT"
	StatusNeedCode OnboardingStatus = "NEED_CODE"
	StatusDone     OnboardingStatus = "DONE"
	StatusCanceled OnboardingStatus = "CANCELED"
)

// OnboardingFlow selects the resumption branch of a suspended attempt.
type OnboardingFlow string

const (
	FlowChallenge OnboardingFlow = "CHALLENGE"
	FlowTwoFactor OnboardingFlow = "TWO_FACTOR"
)

// OnboardingSession is one in-flight, possibly suspended login attempt.
// Flow is set iff Status == StatusNeedCode.
type OnboardingSession struct {
	OnboardingID string           `json:"id" dynamodbav:"onboarding_id"`
	OwnerID      string           `json:"owner_id,omitempty" dynamodbav:"owner_id,omitempty"`
	Username     string           `json:"username" dynamodbav:"username"`
	Credential   string           `json:"credential" dynamodbav:"credential"`
	Proxy        *string          `json:"proxy" dynamodbav:"proxy"`
	Status       OnboardingStatus `json:"status" dynamodbav:"status"`
	Flow         *OnboardingFlow  `json:"flow" dynamodbav:"flow"`
	Logs         []string         `json:"logs" dynamodbav:"logs"`
	CreatedAt    time.Time        `json:"created" dynamodbav:"created_at"`
	ExpiresAt    int64            `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// SetNeedCode suspends the session on the given flow.
func (s *OnboardingSession) SetNeedCode(flow OnboardingFlow) {
	s.Status = StatusNeedCode
	s.Flow = &flow
}

// Expired reports whether the record is past its TTL at now.
// A zero ExpiresAt never expires.
func (s *OnboardingSession) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && now.Unix() > s.ExpiresAt
}

// PoolAccount is a successfully authenticated account registered for later use.
type PoolAccount struct {
	Username   string    `json:"username" dynamodbav:"username"`
	Credential string    `json:"-" dynamodbav:"credential"`
	Proxy      *string   `json:"proxy" dynamodbav:"proxy"`
	Enable     bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
}

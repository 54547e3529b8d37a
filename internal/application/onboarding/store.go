package onboarding

import (
	"context"
	"fmt"

	"github.com/go-onboarding/internal/domain"
	"github.com/go-onboarding/internal/pkg/secret"
)

// SessionStore is durable keyed storage for pending onboarding sessions.
// Get returns an error wrapping domain.ErrNotFound for unknown or expired ids.
// Delete of a missing id is not an error.
type SessionStore interface {
	Put(ctx context.Context, s *domain.OnboardingSession) error
	Get(ctx context.Context, onboardingID string) (*domain.OnboardingSession, error)
	Delete(ctx context.Context, onboardingID string) error
}

type sealedStore struct {
	inner SessionStore
	box   *secret.Box
}

// NewSealedStore encrypts the credential of every session before it reaches
// inner. A nil box returns inner unchanged.
func NewSealedStore(inner SessionStore, box *secret.Box) SessionStore {
	if box == nil {
		return inner
	}
	return &sealedStore{inner: inner, box: box}
}

func (s *sealedStore) Put(ctx context.Context, sess *domain.OnboardingSession) error {
	sealed, err := s.box.Seal(sess.Credential)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	cp := *sess
	cp.Credential = sealed
	return s.inner.Put(ctx, &cp)
}

func (s *sealedStore) Get(ctx context.Context, onboardingID string) (*domain.OnboardingSession, error) {
	sess, err := s.inner.Get(ctx, onboardingID)
	if err != nil {
		return nil, err
	}
	plain, err := s.box.Open(sess.Credential)
	if err != nil {
		return nil, fmt.Errorf("open credential: %w", err)
	}
	sess.Credential = plain
	return sess, nil
}

func (s *sealedStore) Delete(ctx context.Context, onboardingID string) error {
	return s.inner.Delete(ctx, onboardingID)
}

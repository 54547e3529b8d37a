package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-onboarding/internal/domain"
	"github.com/jellydator/ttlcache/v3"
)

// Store is a process-local session store for development and tests.
// Sessions do not survive a restart.
type Store struct {
	cache *ttlcache.Cache[string, domain.OnboardingSession]
	now   func() time.Time
}

// New creates a store whose entries without an expiry fall back to defaultTTL.
// Close stops the background eviction loop.
func New(defaultTTL time.Duration) *Store {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, domain.OnboardingSession](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, domain.OnboardingSession](),
	)
	go cache.Start()
	return &Store{cache: cache, now: time.Now}
}

func (s *Store) Put(_ context.Context, sess *domain.OnboardingSession) error {
	ttl := ttlcache.DefaultTTL
	if sess.ExpiresAt > 0 {
		ttl = time.Unix(sess.ExpiresAt, 0).Sub(s.now())
		if ttl <= 0 {
			s.cache.Delete(sess.OnboardingID)
			return nil
		}
	}
	s.cache.Set(sess.OnboardingID, clone(sess), ttl)
	return nil
}

func (s *Store) Get(_ context.Context, onboardingID string) (*domain.OnboardingSession, error) {
	item := s.cache.Get(onboardingID)
	if item == nil || item.IsExpired() {
		return nil, fmt.Errorf("onboarding session not found: %w", domain.ErrNotFound)
	}
	v := item.Value()
	out := clone(&v)
	return &out, nil
}

func (s *Store) Delete(_ context.Context, onboardingID string) error {
	s.cache.Delete(onboardingID)
	return nil
}

// Len reports the number of stored sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

func (s *Store) Close() error {
	s.cache.Stop()
	return nil
}

// clone copies the mutable parts of a session so callers never share state
// with the cache.
func clone(sess *domain.OnboardingSession) domain.OnboardingSession {
	cp := *sess
	cp.Logs = append([]string{}, sess.Logs...)
	if sess.Proxy != nil {
		p := *sess.Proxy
		cp.Proxy = &p
	}
	if sess.Flow != nil {
		f := *sess.Flow
		cp.Flow = &f
	}
	return cp
}

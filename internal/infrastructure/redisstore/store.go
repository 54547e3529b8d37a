package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-onboarding/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Store keeps onboarding sessions as JSON strings under "<prefix>:<id>".
// The key TTL follows the session's ExpiresAt so Redis discards abandoned
// sessions without a sweeper.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "onb"
	}
	return &Store{rdb: rdb, prefix: prefix, now: time.Now}
}

// NewClient opens a client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *Store) key(onboardingID string) string {
	return s.prefix + ":" + onboardingID
}

func (s *Store) Put(ctx context.Context, sess *domain.OnboardingSession) error {
	var ttl time.Duration
	if sess.ExpiresAt > 0 {
		ttl = time.Unix(sess.ExpiresAt, 0).Sub(s.now())
		if ttl <= 0 {
			return s.Delete(ctx, sess.OnboardingID)
		}
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal onboarding session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(sess.OnboardingID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set onboarding session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, onboardingID string) (*domain.OnboardingSession, error) {
	raw, err := s.rdb.Get(ctx, s.key(onboardingID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("onboarding session not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("redis get onboarding session: %w", err)
	}
	var sess domain.OnboardingSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal onboarding session: %w", err)
	}
	if sess.Logs == nil {
		sess.Logs = []string{}
	}
	return &sess, nil
}

func (s *Store) Delete(ctx context.Context, onboardingID string) error {
	if err := s.rdb.Del(ctx, s.key(onboardingID)).Err(); err != nil {
		return fmt.Errorf("redis delete onboarding session: %w", err)
	}
	return nil
}

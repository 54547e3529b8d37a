package pool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-onboarding/internal/domain"
	"github.com/go-onboarding/internal/pkg/secret"
)

// Service is the account registration sink: it receives accounts whose login
// completed and keeps them for later use.
type Service interface {
	Register(ctx context.Context, username, credential string, proxy *string) (bool, error)
	Get(ctx context.Context, username string) (*domain.PoolAccount, error)
}

type accountStore interface {
	PutIfAbsent(ctx context.Context, a *domain.PoolAccount) (bool, error)
	Get(ctx context.Context, username string) (*domain.PoolAccount, error)
}

type service struct {
	repo accountStore
	box  *secret.Box
	now  func() time.Time
}

// NewService builds the pool. Credentials are sealed with box before they are
// stored; a nil box stores them as given.
func NewService(repo accountStore, box *secret.Box) Service {
	return &service{repo: repo, box: box, now: time.Now}
}

// Register stores the account unless one with the same username exists, in
// which case it reports false. Usernames are matched case-insensitively.
func (s *service) Register(ctx context.Context, username, credential string, proxy *string) (bool, error) {
	username = normalize(username)
	if username == "" {
		return false, fmt.Errorf("username is required: %w", domain.ErrBadRequest)
	}
	sealed, err := s.box.Seal(credential)
	if err != nil {
		return false, fmt.Errorf("seal credential: %w", err)
	}
	added, err := s.repo.PutIfAbsent(ctx, &domain.PoolAccount{
		Username:   username,
		Credential: sealed,
		Proxy:      proxy,
		Enable:     true,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("register account: %w", err)
	}
	return added, nil
}

func (s *service) Get(ctx context.Context, username string) (*domain.PoolAccount, error) {
	return s.repo.Get(ctx, normalize(username))
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

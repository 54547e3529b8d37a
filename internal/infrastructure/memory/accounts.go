package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-onboarding/internal/domain"
)

// Accounts is an in-process account pool.
type Accounts struct {
	mu    sync.Mutex
	items map[string]domain.PoolAccount
}

func NewAccounts() *Accounts {
	return &Accounts{items: make(map[string]domain.PoolAccount)}
}

func (a *Accounts) PutIfAbsent(_ context.Context, acct *domain.PoolAccount) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.items[acct.Username]; ok {
		return false, nil
	}
	a.items[acct.Username] = *acct
	return true, nil
}

func (a *Accounts) Get(_ context.Context, username string) (*domain.PoolAccount, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.items[username]
	if !ok {
		return nil, fmt.Errorf("pool account not found: %w", domain.ErrNotFound)
	}
	return &acct, nil
}

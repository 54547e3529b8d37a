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

// accountRecord is the stored form of a pool account. domain.PoolAccount hides
// the credential from JSON, so it is carried here explicitly.
type accountRecord struct {
	Username   string    `json:"username"`
	Credential string    `json:"credential"`
	Proxy      *string   `json:"proxy"`
	Enable     bool      `json:"enable"`
	CreatedAt  time.Time `json:"created"`
}

// Accounts keeps the account pool under "<prefix>:account:<username>".
type Accounts struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewAccounts(rdb redis.UniversalClient, prefix string) *Accounts {
	if prefix == "" {
		prefix = "onb"
	}
	return &Accounts{rdb: rdb, prefix: prefix}
}

func (a *Accounts) key(username string) string {
	return a.prefix + ":account:" + username
}

// PutIfAbsent relies on SETNX so concurrent registrations of one username
// admit exactly one winner.
func (a *Accounts) PutIfAbsent(ctx context.Context, acct *domain.PoolAccount) (bool, error) {
	raw, err := json.Marshal(accountRecord(*acct))
	if err != nil {
		return false, fmt.Errorf("marshal pool account: %w", err)
	}
	added, err := a.rdb.SetNX(ctx, a.key(acct.Username), raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx pool account: %w", err)
	}
	return added, nil
}

func (a *Accounts) Get(ctx context.Context, username string) (*domain.PoolAccount, error) {
	raw, err := a.rdb.Get(ctx, a.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("pool account not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("redis get pool account: %w", err)
	}
	var rec accountRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal pool account: %w", err)
	}
	acct := domain.PoolAccount(rec)
	return &acct, nil
}

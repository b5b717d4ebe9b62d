package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLeaseTTL = 10 * time.Minute

// leaseStore defines the redis operations used by RedisClaimer.
type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	SettlementLockKey(dealID string) string
}

// RedisClaimer hands out per-deal leases using SET NX with a TTL. The TTL
// should exceed the longest expected fan-out so a lease does not lapse while
// its attempt is still issuing.
type RedisClaimer struct {
	store leaseStore
	ttl   time.Duration
}

func NewRedisClaimer(store leaseStore, ttl time.Duration) (*RedisClaimer, error) {
	if store == nil {
		return nil, errors.New("redis client required for claimer")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisClaimer{store: store, ttl: ttl}, nil
}

func (c *RedisClaimer) Claim(ctx context.Context, dealID uuid.UUID) (Lease, bool, error) {
	key := c.store.SettlementLockKey(dealID.String())
	owner := uuid.NewString()
	ok, err := c.store.SetNX(ctx, key, owner, c.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{store: c.store, key: key, owner: owner}, true, nil
}

type redisLease struct {
	store leaseStore
	key   string
	owner string
}

// Release frees the lease only if this attempt still owns it.
func (l *redisLease) Release(ctx context.Context) error {
	if _, err := l.store.CompareAndDelete(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

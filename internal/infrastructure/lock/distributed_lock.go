package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrLockFailed = errors.New("failed to acquire distributed lock")

// DistributedLock is a redis SET NX EX lock. The value identifies the
// holder so an expired holder cannot release a lock someone else now owns.
//
// The database-level conditional updates are the correctness guarantee;
// the lock only serializes same-key requests so that of two concurrent
// admin clicks one sees a clean InvalidState instead of a retry storm.
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock up to maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock deletes the key only if this holder still owns it. The
// check-and-delete runs as one Lua script.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewOrderLock serializes escrow holds for one order.
func NewOrderLock(client *redis.Client, orderID, holder string) *DistributedLock {
	return NewDistributedLock(client, fmt.Sprintf("escrow:lock:order:%s", orderID), holder, 30*time.Second)
}

// NewTransactionLock serializes release/refund/dispute for one escrow
// transaction.
func NewTransactionLock(client *redis.Client, transactionNo, holder string) *DistributedLock {
	return NewDistributedLock(client, fmt.Sprintf("escrow:lock:txn:%s", transactionNo), holder, 30*time.Second)
}

// NewWalletLock serializes payouts and adjustments for one shop wallet.
// Per-wallet granularity keeps different shops fully concurrent.
func NewWalletLock(client *redis.Client, shopID int64, holder string) *DistributedLock {
	return NewDistributedLock(client, fmt.Sprintf("escrow:lock:wallet:%d", shopID), holder, 30*time.Second)
}

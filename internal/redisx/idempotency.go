package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pending = "pending"

// ErrInFlight means another request holding the same key has not finished.
var ErrInFlight = errors.New("request with this idempotency key is still in flight")

// Idempotency remembers which order an Idempotency-Key produced. A key is
// claimed as "pending" first and only becomes the order id once the order
// exists, so a retry never replays a half-finished placement.
type Idempotency struct {
	rdb        redis.Cmdable
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency {
	return &Idempotency{rdb: rdb, ttl: TTLIdempotency, pendingTTL: TTLPending}
}

// Begin claims key for scope. When the key already completed it returns the
// stored order id and claimed=false.
func (i *Idempotency) Begin(ctx context.Context, scope, key string) (orderID string, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, scope, key)
	ok, err := i.rdb.SetNX(ctx, k, pending, i.pendingTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", true, nil
	}

	v, err := i.rdb.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// the pending claim expired between the two calls
		return "", false, ErrInFlight
	case err != nil:
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	case v == pending:
		return "", false, ErrInFlight
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, scope, key, orderID string) error {
	k := fmt.Sprintf(KeyIdemOrderCreate, scope, key)
	if err := i.rdb.Set(ctx, k, orderID, i.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotency key: %w", err)
	}
	return nil
}

// Abandon drops a claim so the client may retry with the same key.
func (i *Idempotency) Abandon(ctx context.Context, scope, key string) error {
	k := fmt.Sprintf(KeyIdemOrderCreate, scope, key)
	if err := i.rdb.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup marks event ids as processed for one consuming service.
type Dedup struct {
	rdb     redis.Cmdable
	service string
	ttl     time.Duration
}

func NewDedup(rdb redis.Cmdable, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service, ttl: TTLDedup}
}

// First marks id and reports whether this call was the first to see it.
func (d *Dedup) First(ctx context.Context, id string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, id), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup %s: %w", id, err)
	}
	return ok, nil
}

// Forget unmarks id so a failed attempt can be retried.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	if err := d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, id)).Err(); err != nil {
		return fmt.Errorf("forget %s: %w", id, err)
	}
	return nil
}

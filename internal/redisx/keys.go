package redisx

import "time"

const (
	// idem:order:create:{user_id}:{idempotency_key} -> "pending" | order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// dedup:{service}:{id} (id = event_id or event_id:line)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLPending     = time.Minute
	TTLDedup       = 48 * time.Hour
)

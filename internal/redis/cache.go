package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AvailabilityCache holds serialized free-slot responses keyed by doctor and
// date range. Entries carry a short TTL; session and holiday writes drop all
// entries for the affected doctor so a stale read can never outlive an edit.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(doctorID uuid.UUID, from, to string) string {
	return fmt.Sprintf("avail:%s:%s:%s", doctorID, from, to)
}

func (c *AvailabilityCache) Get(ctx context.Context, doctorID uuid.UUID, from, to string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, availabilityKey(doctorID, from, to)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("availability cache get: %w", err)
	}
	return payload, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, doctorID uuid.UUID, from, to string, payload []byte) error {
	err := c.client.Set(ctx, availabilityKey(doctorID, from, to), payload, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("availability cache set: %w", err)
	}
	return nil
}

// InvalidateDoctor removes every cached range for the doctor.
func (c *AvailabilityCache) InvalidateDoctor(ctx context.Context, doctorID uuid.UUID) error {
	return c.deleteByPattern(ctx, fmt.Sprintf("avail:%s:*", doctorID))
}

// InvalidateAll removes all cached availability. Used for clinic-wide
// holiday changes, which touch every doctor at the clinic.
func (c *AvailabilityCache) InvalidateAll(ctx context.Context) error {
	return c.deleteByPattern(ctx, "avail:*")
}

func (c *AvailabilityCache) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("availability cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("availability cache del: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

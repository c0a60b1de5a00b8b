package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Payment providers redeliver webhooks for days; keep processed ids a little
// longer than Stripe's 72h retry window.
const dedupTTL = 96 * time.Hour

// EventDeduper is the processed-webhook-event log backed by Redis.
// Key format: webhook:seen:<event_id>
type EventDeduper struct {
	client *redis.Client
}

// NewEventDeduper creates an EventDeduper wrapping the given Redis client.
func NewEventDeduper(client *redis.Client) *EventDeduper {
	return &EventDeduper{client: client}
}

// Seen reports whether this event id has already been processed.
func (d *EventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records the event id as processed (expires after dedupTTL).
func (d *EventDeduper) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, d.key(eventID), "1", dedupTTL).Err()
}

func (d *EventDeduper) key(eventID string) string {
	return "webhook:seen:" + eventID
}

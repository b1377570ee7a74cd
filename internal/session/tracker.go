// Package session remembers which login sessions already had their default-group
// membership reconciled.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "collab:reconciled:"

// Tracker records first sightings of (user, session) pairs in Redis.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTracker wraps an existing client.
func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	return &Tracker{client: client, ttl: ttl}
}

// Dial connects to the Redis server at url and verifies the connection.
func Dial(ctx context.Context, url string, ttl time.Duration) (*Tracker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewTracker(client, ttl), nil
}

// FirstSeen reports true exactly once per (user, session) within the TTL.
func (t *Tracker) FirstSeen(ctx context.Context, userID int, sessionID string) (bool, error) {
	key := fmt.Sprintf("%s%d:%s", keyPrefix, userID, sessionID)
	return t.client.SetNX(ctx, key, 1, t.ttl).Result()
}

// Forget drops the mark so the next request reconciles again.
func (t *Tracker) Forget(ctx context.Context, userID int, sessionID string) error {
	return t.client.Del(ctx, fmt.Sprintf("%s%d:%s", keyPrefix, userID, sessionID)).Err()
}

// Close releases the Redis connection.
func (t *Tracker) Close() error {
	return t.client.Close()
}

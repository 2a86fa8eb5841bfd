package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shorelinehq/oysterly/internal/domain"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
)

const keyPrefix = "profile:"

// ProfileCache implements repository.ProfileCache using Redis. The TTL is
// kept short because the friends visibility flag is mutated by an external
// settings flow this service never sees.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileCache creates a Redis-backed profile cache.
func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cached profile. A miss is reported as not-found so callers
// fall back to the repository.
func (c *ProfileCache) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	data, err := c.client.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("redis get profile: %w", err)
	}

	var profile domain.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	return &profile, nil
}

// Set stores a profile with the configured TTL.
func (c *ProfileCache) Set(ctx context.Context, profile *domain.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+profile.User.ID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set profile: %w", err)
	}

	return nil
}

// Invalidate removes a cached profile.
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis del profile: %w", err)
	}
	return nil
}

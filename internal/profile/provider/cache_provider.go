package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"beacon/internal/constants"
	"beacon/internal/event"
)

// CacheProvider serves profiles from Redis. It doubles as a write-through
// layer in front of a database provider.
type CacheProvider struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheProvider(client *redis.Client, ttl time.Duration) *CacheProvider {
	return &CacheProvider{client: client, ttl: ttl}
}

func (p *CacheProvider) Name() string {
	return constants.ProviderNameCache
}

func (p *CacheProvider) Fetch(ctx context.Context, deviceID string) (*event.User, error) {
	val, err := p.client.Get(ctx, cacheKey(deviceID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var user event.User
	if err := json.Unmarshal(val, &user); err != nil {
		return nil, fmt.Errorf("corrupt cached profile for %s: %w", deviceID, err)
	}
	return &user, nil
}

// Put caches a resolved profile. Failures are returned for logging but are
// never fatal to the lookup path.
func (p *CacheProvider) Put(ctx context.Context, deviceID string, user *event.User) error {
	body, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := p.client.Set(ctx, cacheKey(deviceID), body, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(deviceID string) string {
	return constants.CacheKeyPrefixProfile + deviceID
}

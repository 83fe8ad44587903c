package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisTTL = 30 * 24 * time.Hour

func NewRedisStorage(client *redis.Client, baseTTL time.Duration) *RedisStorage {
	if baseTTL <= 0 {
		baseTTL = DefaultRedisTTL
	}
	return &RedisStorage{
		client:  client,
		baseTTL: baseTTL,
	}
}

// RedisStorage keeps each cart as a JSON string that expires after a period of inactivity.
type RedisStorage struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisStorage) Load(ctx context.Context, owner string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, storageKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c domain.Cart
	if err2 := json.Unmarshal(data, &c); err2 != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err2)
	}

	return &c, nil
}

func (r *RedisStorage) Save(ctx context.Context, c *domain.Cart) error {
	jsonCart, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// spread expiry so carts created together do not expire together
	jitter := time.Duration(rand.Intn(24)) * time.Hour
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, storageKey(c.Owner), string(jsonCart), ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, owner string) error {
	if err := r.client.Del(ctx, storageKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

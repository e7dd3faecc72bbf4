package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"paperbloom/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Storage is the durable per-identity mirror of cart state. Values are
// JSON-serialized line-item lists under one key per identity. While the
// application runs, memory is authoritative; storage is only read on load or
// identity switch.
type Storage interface {
	Load(ctx context.Context, key string) ([]domain.LineItem, error)
	Save(ctx context.Context, key string, items []domain.LineItem) error
}

const guestKey = "cart-guest"

// StorageKey returns the storage key for a user identity. The empty
// identity is the distinguished guest.
func StorageKey(userID string) string {
	if userID == "" {
		return guestKey
	}
	return "cart-user-" + userID
}

// RedisStorage persists carts in Redis.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage creates a Redis-backed cart storage.
func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

// Load reads the cart stored under key. A missing key is an empty cart, not
// an error.
func (s *RedisStorage) Load(ctx context.Context, key string) ([]domain.LineItem, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cart %q: %w", key, err)
	}

	var items []domain.LineItem
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart %q: %w", key, err)
	}
	return items, nil
}

// Save writes the cart under key, replacing any previous value.
func (s *RedisStorage) Save(ctx context.Context, key string, items []domain.LineItem) error {
	if items == nil {
		items = []domain.LineItem{}
	}
	value, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart %q: %w", key, err)
	}

	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to save cart %q: %w", key, err)
	}
	return nil
}

// MemoryStorage keeps carts in process memory. It serializes values the
// same way RedisStorage does, so load/save round-trips behave identically.
// Useful for embedding without Redis and for tests.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStorage creates an empty in-memory cart storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

func (s *MemoryStorage) Load(ctx context.Context, key string) ([]domain.LineItem, error) {
	s.mu.Lock()
	value, ok := s.values[key]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	var items []domain.LineItem
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart %q: %w", key, err)
	}
	return items, nil
}

func (s *MemoryStorage) Save(ctx context.Context, key string, items []domain.LineItem) error {
	if items == nil {
		items = []domain.LineItem{}
	}
	value, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart %q: %w", key, err)
	}

	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

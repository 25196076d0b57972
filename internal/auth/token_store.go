package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys a client keeps in its token store. All of them are dropped together on
// logout or when the backend answers 401.
const (
	TokenKey        = "ropatopia_token"
	RefreshTokenKey = "ropatopia_refresh_token"
	UserKey         = "ropatopia_user"
)

var authKeys = []string{TokenKey, RefreshTokenKey, UserKey}

var (
	ErrInvalidConfig    = errors.New("invalid token store configuration")
	ErrInvalidStoreType = errors.New("invalid token store type")
)

type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// TokenStore persists small per-client values, the way a browser keeps them in
// local storage.
type TokenStore interface {
	Get(ctx context.Context, clientID, key string) (string, bool, error)
	Set(ctx context.Context, clientID, key, value string) error
	Delete(ctx context.Context, clientID string, keys ...string) error
	Close() error
}

type storeConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
}

type StoreOption func(*storeConfig)

func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithTTL sets how long an untouched client's values survive in redis.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.ttl = ttl }
}

func NewTokenStore(storeType StoreType, opts ...StoreOption) (TokenStore, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory, "":
		return &memoryTokenStore{values: make(map[string]map[string]string)}, nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := cfg.ttl
		if ttl <= 0 {
			ttl = 7 * 24 * time.Hour
		}
		return &redisTokenStore{client: cfg.redisClient, ttl: ttl}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, storeType)
	}
}

type memoryTokenStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

func (s *memoryTokenStore) Get(_ context.Context, clientID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[clientID][key]
	return v, ok, nil
}

func (s *memoryTokenStore) Set(_ context.Context, clientID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.values[clientID]
	if !ok {
		m = make(map[string]string)
		s.values[clientID] = m
	}
	m[key] = value
	return nil
}

func (s *memoryTokenStore) Delete(_ context.Context, clientID string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.values[clientID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(m, k)
	}
	if len(m) == 0 {
		delete(s.values, clientID)
	}
	return nil
}

func (s *memoryTokenStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]map[string]string)
	return nil
}

// redisTokenStore keeps one hash per client and refreshes its TTL on access.
type redisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (s *redisTokenStore) key(clientID string) string {
	return "ropatopia:client:" + clientID
}

func (s *redisTokenStore) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	k := s.key(clientID)
	v, err := s.client.HGet(ctx, k, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get token failed: %w", err)
	}
	_ = s.client.Expire(ctx, k, s.ttl).Err()
	return v, true, nil
}

func (s *redisTokenStore) Set(ctx context.Context, clientID, key, value string) error {
	k := s.key(clientID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, key, value)
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set token failed: %w", err)
	}
	return nil
}

func (s *redisTokenStore) Delete(ctx context.Context, clientID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key(clientID), keys...).Err(); err != nil {
		return fmt.Errorf("redis delete token failed: %w", err)
	}
	return nil
}

// Close is a no-op; the redis client is owned by bootstrap.
func (s *redisTokenStore) Close() error {
	return nil
}

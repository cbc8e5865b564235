package directdebit

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// TokenStore caches the gateway bearer token.
type TokenStore interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string, ttl time.Duration)
	Clear(ctx context.Context)
}

// MemoryTokenStore keeps the token in process.
type MemoryTokenStore struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Get(_ context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || !time.Now().Before(s.expires) {
		return "", false
	}
	return s.token, true
}

func (s *MemoryTokenStore) Set(_ context.Context, token string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expires = time.Now().Add(ttl)
}

func (s *MemoryTokenStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expires = time.Time{}
}

// RedisTokenStore shares the token between replicas. It degrades to the in-process copy when
// Redis is unreachable.
type RedisTokenStore struct {
	client   *redis.Client
	key      string
	fallback *MemoryTokenStore
	logger   *zap.Logger
}

func NewRedisTokenStore(client *redis.Client, key string, logger *zap.Logger) *RedisTokenStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTokenStore{client: client, key: key, fallback: NewMemoryTokenStore(), logger: logger}
}

func (s *RedisTokenStore) Get(ctx context.Context) (string, bool) {
	if s.client == nil {
		return s.fallback.Get(ctx)
	}
	token, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		s.logger.Warn("token cache read failed, using local copy", zap.Error(err))
		return s.fallback.Get(ctx)
	}
	return token, token != ""
}

func (s *RedisTokenStore) Set(ctx context.Context, token string, ttl time.Duration) {
	s.fallback.Set(ctx, token, ttl)
	if s.client == nil {
		return
	}
	if err := s.client.Set(ctx, s.key, token, ttl).Err(); err != nil {
		s.logger.Warn("token cache write failed", zap.Error(err))
	}
}

func (s *RedisTokenStore) Clear(ctx context.Context) {
	s.fallback.Clear(ctx)
	if s.client == nil {
		return
	}
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		s.logger.Warn("token cache delete failed", zap.Error(err))
	}
}

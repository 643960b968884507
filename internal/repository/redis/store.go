package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/repository"
	apperrors "github.com/pestofarm/storefront/pkg/errors"
)

// Store keeps snapshots as plain redis strings under "<prefix>:<key>"
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

var (
	_ repository.SnapshotStore = (*Store)(nil)
	_ repository.KeyLister     = (*Store)(nil)
)

// NewClient opens a redis client and pings it
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *Store) prefixKey(key string) string {
	var builder strings.Builder
	builder.Grow(len(s.prefix) + 1 + len(key))
	builder.WriteString(s.prefix)
	builder.WriteString(":")
	builder.WriteString(key)
	return builder.String()
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &apperrors.ErrNotFound{Resource: "snapshot", ID: key}
	}
	if err != nil {
		s.logger.Error("Failed to read snapshot from redis", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return v, nil
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefixKey(key), value, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to write snapshot to redis", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefixKey(key)).Err()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// Keys scans for keys starting with prefix and returns them without the store prefix
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var cursor uint64
	var out []string
	trim := s.prefix + ":"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, globEscaper.Replace(s.prefixKey(prefix))+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			out = append(out, strings.TrimPrefix(k, trim))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultScanCount = 100

type redisService struct {
	client    redis.UniversalClient
	scanCount int64
	ownClient bool
}

// NewRedisService dials Redis and checks the connection with PING.
func NewRedisService(ctx context.Context, cfg RedisConfig) (*redisService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cacheinfra: redis ping %s: %w", cfg.Addr, err)
	}

	svc := NewRedisServiceFromClient(client, cfg.ScanCount)
	svc.ownClient = true
	return svc, nil
}

// NewRedisServiceFromClient wraps an existing client. Close leaves the
// client open.
func NewRedisServiceFromClient(client redis.UniversalClient, scanCount int64) *redisService {
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &redisService{client: client, scanCount: scanCount}
}

// Get returns the value for key. redis.Nil is a miss.
func (s *redisService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value with ttl. A zero ttl never expires.
func (s *redisService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes key.
func (s *redisService) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// DeleteMatching collects every key matching pattern over a full SCAN and
// then deletes them in batches of scanCount. Deleting while the cursor is
// open can make SCAN skip keys. Keys written after the walk survive.
func (s *redisService) DeleteMatching(ctx context.Context, pattern string) error {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return fmt.Errorf("cacheinfra: scan %q: %w", pattern, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}

	for start := 0; start < len(keys); start += int(s.scanCount) {
		end := min(start+int(s.scanCount), len(keys))
		if err := s.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("cacheinfra: delete %d keys: %w", end-start, err)
		}
	}
	return nil
}

// Close closes the client when the service dialed it.
func (s *redisService) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

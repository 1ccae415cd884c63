package cacheinfra

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

type sturdycEntry struct {
	value     []byte
	expiresAt time.Time
}

// sturdycService keeps cache entries in process memory. sturdyc applies a
// single TTL per client, so each entry also carries its own deadline to
// honour shorter ttls passed to Set.
type sturdycService struct {
	client *sturdyc.Client[sturdycEntry]
	ttl    time.Duration
	now    func() time.Time
}

// NewSturdycService creates a new sturdyc cache service adapter.
// It validates the configuration and initializes a sturdyc client with the provided settings.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[sturdycEntry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &sturdycService{client: client, ttl: cfg.TTL, now: time.Now}, nil
}

// Get returns the value for key. Entries past their own expiry are misses.
func (s *sturdycService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		s.client.Delete(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value with its own expiry, capped at the cache TTL. A zero
// ttl uses the cache TTL.
func (s *sturdycService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > s.ttl {
		ttl = s.ttl
	}
	s.client.Set(key, sturdycEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// Delete removes a single entry from the cache.
func (s *sturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteMatching scans every key and deletes the ones matching pattern.
func (s *sturdycService) DeleteMatching(ctx context.Context, pattern string) error {
	matcher, err := compilePattern(pattern)
	if err != nil {
		return err
	}

	for _, key := range s.client.ScanKeys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if matcher.Match(key) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Close is a no-op; sturdyc holds no external resources.
func (s *sturdycService) Close() error {
	return nil
}

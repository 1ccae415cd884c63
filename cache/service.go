package cache

import (
	"context"
	"log/slog"
	"time"
)

// CacheService is the key-value contract the content services depend on.
// Values are opaque byte slices produced by a Codec.
type CacheService interface {
	// Get returns the value stored under key. A miss is reported with
	// ok=false and a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a single key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteMatching removes every key matching the glob pattern at call
	// time. It is not atomic with concurrent writers but it never drops a
	// matching key silently: it either completes or returns an error.
	DeleteMatching(ctx context.Context, pattern string) error
	// Close releases the backend connection.
	Close() error
}

// FetchFn is the function signature used to load a value from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// ReadThrough bundles what GetOrFetch needs to serve a read.
type ReadThrough struct {
	Service CacheService
	Codec   Codec
	TTL     time.Duration
	Logger  *slog.Logger
}

func (rt ReadThrough) logger() *slog.Logger {
	if rt.Logger == nil {
		return slog.Default()
	}
	return rt.Logger
}

// GetOrFetch serves key from the cache or loads it with fetchFn and writes
// the result back. The returned bool reports a cache hit.
//
// Cache failures never fail the read: an unreadable entry is treated as a
// miss and a failed write-back is logged, since the fetched value is still
// valid.
func GetOrFetch[T any](ctx context.Context, rt ReadThrough, key string, fetchFn FetchFn[T]) (T, bool, error) {
	log := rt.logger()

	raw, ok, err := rt.Service.Get(ctx, key)
	if err != nil {
		log.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	} else if ok {
		var cached T
		if err := rt.Codec.Unmarshal(raw, &cached); err == nil {
			return cached, true, nil
		} else {
			log.WarnContext(ctx, "cache entry undecodable", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	result, err := fetchFn(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	encoded, err := rt.Codec.Marshal(result)
	if err != nil {
		log.WarnContext(ctx, "cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return result, false, nil
	}

	if err := rt.Service.Set(ctx, key, encoded, rt.TTL); err != nil {
		log.WarnContext(ctx, "cache write-back failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	return result, false, nil
}

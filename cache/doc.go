// Package cache provides the key-value contract, key building and value
// encoding used to cache content reads.
//
// # Overview
//
// The package exports three pieces:
//
//   - CacheService: a byte oriented key-value store with pattern deletes
//   - KeySerializer: builds stable cache keys from a namespace and arguments
//   - Codec: encodes cached values (msgpack, zstd for large payloads)
//
// GetOrFetch ties them together into the read-through path used by the
// content services.
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(ctx, cache.DefaultConfig(), logger)
//	rt, err := cache.NewReadThrough(svc, cache.DefaultConfig(), logger)
//
//	key := cache.NewDefaultKeySerializer().SerializeKey("notes", 0, 10, "newest", "")
//	page, hit, err := cache.GetOrFetch(ctx, rt, key, func(ctx context.Context) (Page, error) {
//		return store.FindMany(ctx, query)
//	})
//
// # Keys
//
// Keys are colon separated. Strings longer than MaxSegmentLength are replaced
// by "#" and their xxhash64 in hex, so user supplied search text never
// produces unbounded keys. Patterns passed to DeleteMatching use Redis glob
// syntax on every backend, and '*' matches across separators.
//
// # Backends
//
// The driver in Config selects the backend:
//
//   - memory: sturdyc, in process, lost on restart
//   - redis: shared between instances, pattern deletes use SCAN
//   - bolt: single file on disk, survives restarts of a single instance
//
// # Failure Handling
//
// A cache is never the source of truth. GetOrFetch treats read and decode
// failures as misses and logs failed write-backs. Invalidation failures are
// returned to the caller.
package cache

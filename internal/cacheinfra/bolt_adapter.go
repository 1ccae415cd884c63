package cacheinfra

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBoltBucket = "cache"

// boltService persists cache entries in a single bbolt bucket. Each value
// is prefixed with its expiry as unix nanoseconds, big endian.
type boltService struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// NewBoltService opens (or creates) the database file and its bucket.
func NewBoltService(cfg BoltConfig) (*boltService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("cacheinfra: open bolt %s: %w", cfg.Path, err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBoltBucket
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cacheinfra: create bucket %q: %w", bucket, err)
	}

	return &boltService{db: db, bucket: []byte(bucket), now: time.Now}, nil
}

// Get returns the value for key. Expired entries are misses.
func (s *boltService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value   []byte
		found   bool
		expired bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		payload, ok := s.decode(raw)
		if !ok {
			expired = true
			return nil
		}
		// bbolt memory is only valid inside the transaction.
		value = append([]byte{}, payload...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if expired {
		_ = s.deleteIfExpired(key)
		return nil, false, nil
	}
	return value, found, nil
}

// Set stores value with an expiry prefix. A zero ttl never expires.
func (s *boltService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixNano()
	}

	raw := make([]byte, 8, 8+len(value))
	binary.BigEndian.PutUint64(raw, uint64(expiresAt))
	raw = append(raw, value...)

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), raw)
	})
}

// Delete removes key. Missing keys are not an error.
func (s *boltService) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// deleteIfExpired removes key only if the stored entry is still expired,
// so a value written since the read survives.
func (s *boltService) deleteIfExpired(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if _, ok := s.decode(raw); ok {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// DeleteMatching walks the bucket in one transaction and deletes every key
// matching pattern along with every expired entry.
func (s *boltService) DeleteMatching(ctx context.Context, pattern string) error {
	matcher, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	prefix := []byte(literalPrefix(pattern))

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var doomed [][]byte

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if bytes.HasPrefix(k, prefix) && matcher.Match(string(k)) {
				doomed = append(doomed, append([]byte(nil), k...))
				continue
			}
			if _, ok := s.decode(v); !ok {
				doomed = append(doomed, append([]byte(nil), k...))
			}
		}

		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the bolt file.
func (s *boltService) Close() error {
	return s.db.Close()
}

// decode strips the expiry header. ok is false for expired or malformed
// entries.
func (s *boltService) decode(raw []byte) (payload []byte, ok bool) {
	if len(raw) < 8 {
		return nil, false
	}
	expiresAt := int64(binary.BigEndian.Uint64(raw[:8]))
	if expiresAt != 0 && s.now().UnixNano() >= expiresAt {
		return nil, false
	}
	return raw[8:], true
}

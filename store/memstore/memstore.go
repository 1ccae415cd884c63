// Package memstore keeps content records in process memory. It backs the
// "memory" store driver and the service tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-content-cache/content"
	"github.com/goliatone/go-content-cache/store"
)

// Store is a concurrent map of records. Records are cloned on the way in
// and out so callers never share memory with the map.
type Store[T content.Entity[T]] struct {
	records *xsync.MapOf[uuid.UUID, T]
	now     func() time.Time
}

// New returns an empty store.
func New[T content.Entity[T]]() *Store[T] {
	return &Store[T]{
		records: xsync.NewMapOf[uuid.UUID, T](),
		now:     time.Now,
	}
}

var _ store.Store[*content.Note] = (*Store[*content.Note])(nil)

// FindMany returns one sorted page of records matching q.
func (s *Store[T]) FindMany(ctx context.Context, q content.Query) ([]T, error) {
	matched := s.matching(q.Filter)

	sort.Slice(matched, func(i, j int) bool {
		return q.Less(matched[i].Core(), matched[j].Core())
	})

	if q.Skip >= len(matched) {
		return []T{}, nil
	}
	end := q.Skip + q.Take
	if q.Take <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[q.Skip:end], nil
}

// Count returns how many records match f.
func (s *Store[T]) Count(ctx context.Context, f content.Filter) (int, error) {
	return len(s.matching(f)), nil
}

func (s *Store[T]) matching(f content.Filter) []T {
	var out []T
	s.records.Range(func(_ uuid.UUID, record T) bool {
		if f.Matches(record.Core(), tagsOf(record)) {
			out = append(out, record.Clone())
		}
		return true
	})
	return out
}

// FindUnique returns a copy of the record, live or deleted.
func (s *Store[T]) FindUnique(ctx context.Context, id uuid.UUID) (T, error) {
	record, ok := s.records.Load(id)
	if !ok {
		var zero T
		return zero, store.ErrNotFound
	}
	return record.Clone(), nil
}

// Create assigns an id when missing and stores a copy.
func (s *Store[T]) Create(ctx context.Context, record T) (T, error) {
	stored := record.Clone()
	core := stored.Core()
	if core.ID == uuid.Nil {
		core.ID = uuid.New()
	}
	if core.CreatedAt.IsZero() {
		core.CreatedAt = s.now().UTC()
	}

	if _, loaded := s.records.LoadOrStore(core.ID, stored); loaded {
		var zero T
		return zero, fmt.Errorf("memstore: duplicate id %s", core.ID)
	}
	return stored.Clone(), nil
}

// Update writes the mutable columns of record.
func (s *Store[T]) Update(ctx context.Context, record T) (T, error) {
	return s.compute(record.Core().ID, func(current T) T {
		current.MergeMutable(record)
		return current
	})
}

// SetDeletedAt sets or clears the deletion time and returns the record.
func (s *Store[T]) SetDeletedAt(ctx context.Context, id uuid.UUID, at *time.Time) (T, error) {
	return s.compute(id, func(current T) T {
		if at == nil {
			current.Core().DeletedAt = nil
		} else {
			t := *at
			current.Core().DeletedAt = &t
		}
		return current
	})
}

// Increment adds one to field atomically.
func (s *Store[T]) Increment(ctx context.Context, id uuid.UUID, field content.Field) (T, error) {
	if field != content.FieldViews {
		var zero T
		return zero, fmt.Errorf("memstore: unknown counter %q", field)
	}
	return s.compute(id, func(current T) T {
		current.Core().Views++
		return current
	})
}

// compute applies fn to a copy of the stored record under the map's
// per-key lock. Missing ids are left absent.
func (s *Store[T]) compute(id uuid.UUID, fn func(T) T) (T, error) {
	var (
		result T
		found  bool
	)
	s.records.Compute(id, func(current T, loaded bool) (T, bool) {
		if !loaded {
			return current, true
		}
		found = true
		next := fn(current.Clone())
		result = next.Clone()
		return next, false
	})
	if !found {
		var zero T
		return zero, store.ErrNotFound
	}
	return result, nil
}

// Len reports the number of stored records, deleted ones included.
func (s *Store[T]) Len() int {
	return s.records.Size()
}

func tagsOf(record any) []string {
	if t, ok := record.(content.Tagged); ok {
		return t.TagList()
	}
	return nil
}

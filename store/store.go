// Package store defines the persistence contract of the content services.
//
// A Store returns records regardless of their deletion state from
// FindUnique; the services apply the live/deleted guards. Listing methods
// filter on the state carried by the query.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-content-cache/content"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("store: record not found")

// Store persists one content kind. T is the model pointer type.
type Store[T content.Entity[T]] interface {
	// FindMany returns one page of records matching q, sorted by q.Order.
	FindMany(ctx context.Context, q content.Query) ([]T, error)
	// Count returns the number of records matching f.
	Count(ctx context.Context, f content.Filter) (int, error)
	// FindUnique returns the record with id, live or deleted.
	FindUnique(ctx context.Context, id uuid.UUID) (T, error)
	// Create inserts record. A nil id is replaced by a new one and the
	// creation time is set when zero.
	Create(ctx context.Context, record T) (T, error)
	// Update writes the mutable columns of record and returns the stored
	// record.
	Update(ctx context.Context, record T) (T, error)
	// SetDeletedAt sets or clears the deletion timestamp.
	SetDeletedAt(ctx context.Context, id uuid.UUID, at *time.Time) (T, error)
	// Increment atomically adds one to a counter column.
	Increment(ctx context.Context, id uuid.UUID, field content.Field) (T, error)
}

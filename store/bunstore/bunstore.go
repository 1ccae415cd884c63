package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/goliatone/go-content-cache/content"
	"github.com/goliatone/go-content-cache/store"
)

// Store implements store.Store on a bun database. Inserts and counts go
// through a go-repository-bun repository; the remaining operations need
// column level control and use bun directly.
type Store[T content.Entity[T]] struct {
	db        *bun.DB
	repo      repository.Repository[T]
	newRecord func() T
	now       func() time.Time
}

// New returns a store for the model produced by newRecord.
func New[T content.Entity[T]](db *bun.DB, newRecord func() T) *Store[T] {
	handlers := repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			return record.Core().ID
		},
		SetID: func(record T, id uuid.UUID) {
			record.Core().ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	}

	return &Store[T]{
		db:        db,
		repo:      repository.NewRepository[T](db, handlers),
		newRecord: newRecord,
		now:       time.Now,
	}
}

var _ store.Store[*content.Post] = (*Store[*content.Post])(nil)

// FindMany returns one sorted page of records matching q.
func (s *Store[T]) FindMany(ctx context.Context, q content.Query) ([]T, error) {
	var records []T
	query := s.db.NewSelect().Model(&records)
	for _, criteria := range s.filterCriteria(q.Filter) {
		query = criteria(query)
	}

	column, desc := q.Order.Sort()
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	query = query.
		OrderExpr("?TableAlias.? "+direction, bun.Ident(column)).
		OrderExpr("?TableAlias.id ASC").
		Offset(q.Skip).
		Limit(q.Take)

	if err := query.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bunstore: find many: %w", err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// Count returns how many records match f.
func (s *Store[T]) Count(ctx context.Context, f content.Filter) (int, error) {
	total, err := s.repo.Count(ctx, s.filterCriteria(f)...)
	if err != nil {
		return 0, fmt.Errorf("bunstore: count: %w", err)
	}
	return total, nil
}

// FindUnique loads a record by id, live or deleted.
func (s *Store[T]) FindUnique(ctx context.Context, id uuid.UUID) (T, error) {
	record := s.newRecord()
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, store.ErrNotFound
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("bunstore: find %s: %w", id, err)
	}
	return record, nil
}

// Create assigns an id when missing and inserts the record.
func (s *Store[T]) Create(ctx context.Context, record T) (T, error) {
	core := record.Core()
	if core.ID == uuid.Nil {
		core.ID = uuid.New()
	}
	if core.CreatedAt.IsZero() {
		core.CreatedAt = s.now().UTC()
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("bunstore: create: %w", err)
	}
	return created, nil
}

// Update writes only the mutable columns so a concurrent delete or view
// increment is not overwritten by a stale copy.
func (s *Store[T]) Update(ctx context.Context, record T) (T, error) {
	res, err := s.db.NewUpdate().
		Model(record).
		Column(record.MutableColumns()...).
		Where("id = ?", record.Core().ID).
		Exec(ctx)
	if err := affected(res, err); err != nil {
		var zero T
		return zero, err
	}
	return s.FindUnique(ctx, record.Core().ID)
}

// SetDeletedAt sets or clears the deletion time and returns the record.
func (s *Store[T]) SetDeletedAt(ctx context.Context, id uuid.UUID, at *time.Time) (T, error) {
	res, err := s.db.NewUpdate().
		Model(s.newRecord()).
		Set("deleted_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err := affected(res, err); err != nil {
		var zero T
		return zero, err
	}
	return s.FindUnique(ctx, id)
}

// Increment adds one to field in a single statement.
func (s *Store[T]) Increment(ctx context.Context, id uuid.UUID, field content.Field) (T, error) {
	if field != content.FieldViews {
		var zero T
		return zero, fmt.Errorf("bunstore: unknown counter %q", field)
	}

	res, err := s.db.NewUpdate().
		Model(s.newRecord()).
		Set("? = ? + 1", bun.Ident(string(field)), bun.Ident(string(field))).
		Where("id = ?", id).
		Exec(ctx)
	if err := affected(res, err); err != nil {
		var zero T
		return zero, err
	}
	return s.FindUnique(ctx, id)
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("bunstore: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bunstore: rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// filterCriteria translates a content.Filter into select criteria shared by
// FindMany and Count.
func (s *Store[T]) filterCriteria(f content.Filter) []repository.SelectCriteria {
	criteria := []repository.SelectCriteria{stateCriteria(f.State)}
	if f.Search != "" {
		criteria = append(criteria, s.searchCriteria(f))
	}
	return criteria
}

func stateCriteria(state content.State) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if state == content.StateDeleted {
			return q.Where("?TableAlias.deleted_at IS NOT NULL")
		}
		return q.Where("?TableAlias.deleted_at IS NULL")
	}
}

func (s *Store[T]) searchCriteria(f content.Filter) repository.SelectCriteria {
	pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
	postgres := s.db.Dialect().Name() == dialect.PG

	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if postgres {
				q = q.Where("?TableAlias.title ILIKE ?", pattern).
					WhereOr("?TableAlias.content ILIKE ?", pattern)
				if len(f.Tags) > 0 {
					q = q.WhereOr("jsonb_exists_any(?TableAlias.tags, ?)", pgdialect.Array(f.Tags))
				}
				return q
			}

			q = q.Where(`ulower(?TableAlias.title) LIKE ? ESCAPE '\'`, pattern).
				WhereOr(`ulower(?TableAlias.content) LIKE ? ESCAPE '\'`, pattern)
			if len(f.Tags) > 0 {
				q = q.WhereOr("EXISTS (SELECT 1 FROM json_each(?TableAlias.tags) WHERE json_each.value IN (?))", bun.In(f.Tags))
			}
			return q
		})
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

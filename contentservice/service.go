package contentservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/goliatone/go-content-cache/cache"
	"github.com/goliatone/go-content-cache/content"
	"github.com/goliatone/go-content-cache/media"
	"github.com/goliatone/go-content-cache/store"
)

// MsgInternal is returned to callers for store and cache failures.
const MsgInternal = "Internal server error"

// ListResult is one page of records and the total matching the filter.
type ListResult[T any] struct {
	Items []T `json:"items" msgpack:"items"`
	Total int `json:"total" msgpack:"total"`
}

// ListParams are the listing inputs before normalisation.
type ListParams struct {
	Skip   int
	Take   int
	Order  content.Order
	Search string
}

// DeleteResult is returned by Delete.
type DeleteResult struct {
	Message string `json:"message"`
}

// Service serves one content kind with read-through caching over a store.
type Service[T content.Entity[T]] struct {
	kind        content.Kind
	store       store.Store[T]
	cache       cache.ReadThrough
	keys        cache.KeyBuilder
	newRecord   func() T
	media       media.Sink
	logger      *slog.Logger
	now         func() time.Time
	maxPageSize int
}

// Option configures a Service.
type Option func(*options)

type options struct {
	media       media.Sink
	logger      *slog.Logger
	now         func() time.Time
	maxPageSize int
	keys        *cache.KeyBuilder
}

// WithMediaSink sets where uploaded images are stored.
func WithMediaSink(sink media.Sink) Option {
	return func(o *options) { o.media = sink }
}

// WithLogger sets the logger. It defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides time.Now for creation and deletion timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMaxPageSize clamps listing windows. Zero keeps content.MaxPageSize.
func WithMaxPageSize(n int) Option {
	return func(o *options) { o.maxPageSize = n }
}

// WithKeyBuilder replaces the key builder derived from the kind.
func WithKeyBuilder(keys cache.KeyBuilder) Option {
	return func(o *options) { o.keys = &keys }
}

// New creates a Service for kind. newRecord must return an empty model.
func New[T content.Entity[T]](kind content.Kind, st store.Store[T], rt cache.ReadThrough, newRecord func() T, opts ...Option) *Service[T] {
	o := options{
		logger:      slog.Default(),
		now:         time.Now,
		maxPageSize: content.MaxPageSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxPageSize <= 0 {
		o.maxPageSize = content.MaxPageSize
	}

	keys := cache.NewKeyBuilder(kind.Singular, kind.Plural)
	if o.keys != nil {
		keys = *o.keys
	}

	return &Service[T]{
		kind:        kind,
		store:       st,
		cache:       rt,
		keys:        keys,
		newRecord:   newRecord,
		media:       o.media,
		logger:      o.logger.With("kind", kind.Plural),
		now:         o.now,
		maxPageSize: o.maxPageSize,
	}
}

// Kind returns the descriptor the service was built with.
func (s *Service[T]) Kind() content.Kind { return s.kind }

// FindAll lists live records.
func (s *Service[T]) FindAll(ctx context.Context, p ListParams) (ListResult[T], error) {
	q := content.Compose(s.kind, content.StateLive, p.Skip, p.Take, p.Order, p.Search, s.maxPageSize)
	key := s.keys.Listing(q.Skip, q.Take, string(q.Order), q.Search)
	return s.list(ctx, key, q)
}

// FindAllDeleted lists soft deleted records.
func (s *Service[T]) FindAllDeleted(ctx context.Context, p ListParams) (ListResult[T], error) {
	q := content.Compose(s.kind, content.StateDeleted, p.Skip, p.Take, p.Order, p.Search, s.maxPageSize)
	key := s.keys.DeletedListing(q.Skip, q.Take, string(q.Order), q.Search)
	return s.list(ctx, key, q)
}

func (s *Service[T]) list(ctx context.Context, key string, q content.Query) (ListResult[T], error) {
	res, hit, err := cache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (ListResult[T], error) {
		return s.fetchPage(ctx, q)
	})
	if err != nil {
		return ListResult[T]{}, content.Internal(MsgInternal, err)
	}
	s.logger.DebugContext(ctx, "listing served", "key", key, "cache_hit", hit, "total", res.Total)
	if res.Items == nil {
		res.Items = []T{}
	}
	return res, nil
}

// fetchPage loads the page and the total concurrently from the same filter.
func (s *Service[T]) fetchPage(ctx context.Context, q content.Query) (ListResult[T], error) {
	var res ListResult[T]

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		items, err := s.store.FindMany(ctx, q)
		res.Items = items
		return err
	})
	p.Go(func(ctx context.Context) error {
		total, err := s.store.Count(ctx, q.Filter)
		res.Total = total
		return err
	})
	if err := p.Wait(); err != nil {
		return ListResult[T]{}, err
	}
	return res, nil
}

// FindOne returns a live record.
func (s *Service[T]) FindOne(ctx context.Context, rawID string) (T, error) {
	id, err := content.ParseID(rawID)
	if err != nil {
		var zero T
		return zero, err
	}

	key := s.keys.Item(id.String())
	record, hit, err := cache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (T, error) {
		return s.findLive(ctx, id)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	s.logger.DebugContext(ctx, "record served", "key", key, "cache_hit", hit)
	return record, nil
}

// Create validates p, stores the optional image and inserts a live record.
// Kinds that require an image reject a nil upload before anything else.
func (s *Service[T]) Create(ctx context.Context, p content.Patch, upload *media.Upload) (T, error) {
	var zero T

	if s.kind.RequiresImage && upload == nil {
		return zero, content.BadRequest(content.MsgImageRequired)
	}
	if err := content.ValidateCreate(p); err != nil {
		return zero, err
	}
	if err := s.attachImage(ctx, &p, upload); err != nil {
		return zero, err
	}

	record := s.newRecord()
	record.Apply(p)
	record.Core().CreatedAt = s.now().UTC()

	created, err := s.store.Create(ctx, record)
	if err != nil {
		return zero, content.Internal(MsgInternal, err)
	}

	if err := s.invalidate(ctx, nil); err != nil {
		return zero, err
	}
	s.logger.InfoContext(ctx, "record created", "id", created.Core().ID)
	return created, nil
}

// Update applies p to a live record.
func (s *Service[T]) Update(ctx context.Context, rawID string, p content.Patch, upload *media.Upload) (T, error) {
	var zero T

	id, err := content.ParseID(rawID)
	if err != nil {
		return zero, err
	}
	if err := content.ValidateUpdate(p); err != nil {
		return zero, err
	}

	current, err := s.findLive(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := s.attachImage(ctx, &p, upload); err != nil {
		return zero, err
	}

	current.Apply(p)
	updated, err := s.store.Update(ctx, current)
	if errors.Is(err, store.ErrNotFound) {
		return zero, s.kind.NotFound()
	}
	if err != nil {
		return zero, content.Wrap(content.KindBadRequest, s.kind.UpdateFailed, err)
	}

	if err := s.invalidate(ctx, &id); err != nil {
		return zero, err
	}
	return updated, nil
}

// Delete soft deletes a live record.
func (s *Service[T]) Delete(ctx context.Context, rawID string) (DeleteResult, error) {
	id, err := content.ParseID(rawID)
	if err != nil {
		return DeleteResult{}, err
	}
	if _, err := s.findLive(ctx, id); err != nil {
		return DeleteResult{}, err
	}

	at := s.now().UTC()
	if _, err := s.store.SetDeletedAt(ctx, id, &at); err != nil {
		return DeleteResult{}, s.mutationError(err)
	}

	if err := s.invalidate(ctx, &id); err != nil {
		return DeleteResult{}, err
	}
	s.logger.InfoContext(ctx, "record deleted", "id", id)
	return DeleteResult{Message: s.kind.DeletedMessage(id.String())}, nil
}

// Restore brings a deleted record back to live.
func (s *Service[T]) Restore(ctx context.Context, rawID string) (T, error) {
	var zero T

	id, err := content.ParseID(rawID)
	if err != nil {
		return zero, err
	}

	current, err := s.store.FindUnique(ctx, id)
	if err != nil {
		return zero, s.mutationError(err)
	}
	if current.Core().Live() {
		return zero, s.kind.NotDeleted()
	}

	restored, err := s.store.SetDeletedAt(ctx, id, nil)
	if err != nil {
		return zero, s.mutationError(err)
	}

	if err := s.invalidate(ctx, &id); err != nil {
		return zero, err
	}
	s.logger.InfoContext(ctx, "record restored", "id", id)
	return restored, nil
}

// IncrementViews adds one view to a live record.
func (s *Service[T]) IncrementViews(ctx context.Context, rawID string) (T, error) {
	var zero T

	id, err := content.ParseID(rawID)
	if err != nil {
		return zero, err
	}
	if _, err := s.findLive(ctx, id); err != nil {
		return zero, err
	}

	updated, err := s.store.Increment(ctx, id, content.FieldViews)
	if err != nil {
		return zero, s.mutationError(err)
	}

	if err := s.invalidate(ctx, &id); err != nil {
		return zero, err
	}
	return updated, nil
}

// findLive loads a record and hides deleted ones.
func (s *Service[T]) findLive(ctx context.Context, id uuid.UUID) (T, error) {
	record, err := s.store.FindUnique(ctx, id)
	if err != nil {
		var zero T
		return zero, s.mutationError(err)
	}
	if !record.Core().Live() {
		var zero T
		return zero, s.kind.NotFound()
	}
	return record, nil
}

func (s *Service[T]) mutationError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return s.kind.NotFound()
	}
	return content.Internal(MsgInternal, err)
}

// attachImage stores upload and points p at it. Kinds without images
// ignore uploads.
func (s *Service[T]) attachImage(ctx context.Context, p *content.Patch, upload *media.Upload) error {
	if upload == nil || !s.kind.RequiresImage {
		return nil
	}
	if s.media == nil {
		return content.Internal(media.MsgSaveFailed, errors.New("contentservice: no media sink configured"))
	}
	ref, err := s.media.Store(ctx, upload.Data, upload.Name)
	if err != nil {
		return err
	}
	p.Image = &ref
	return nil
}

// invalidate drops every listing of the kind and, when id is set, the
// record's own entry.
func (s *Service[T]) invalidate(ctx context.Context, id *uuid.UUID) error {
	pattern := s.keys.ListingPattern()
	if err := s.cache.Service.DeleteMatching(ctx, pattern); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed", "pattern", pattern, "error", err)
		return content.Internal(MsgInternal, err)
	}

	if id == nil {
		return nil
	}
	key := s.keys.Item(id.String())
	if err := s.cache.Service.Delete(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed", "key", key, "error", err)
		return content.Internal(MsgInternal, err)
	}
	return nil
}

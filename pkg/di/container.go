package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-content-cache/auth"
	"github.com/goliatone/go-content-cache/cache"
	"github.com/goliatone/go-content-cache/config"
	"github.com/goliatone/go-content-cache/content"
	"github.com/goliatone/go-content-cache/contentservice"
	"github.com/goliatone/go-content-cache/httpapi"
	"github.com/goliatone/go-content-cache/media"
	"github.com/goliatone/go-content-cache/store"
	"github.com/goliatone/go-content-cache/store/bunstore"
	"github.com/goliatone/go-content-cache/store/memstore"
)

// Container owns the application's long lived components: the cache, the
// store connection, the media sink, the authenticator and one content
// service per kind. Close releases whatever it opened.
type Container struct {
	config       config.Config
	logger       *slog.Logger
	fs           afero.Fs
	cacheService cache.CacheService
	readThrough  cache.ReadThrough
	db           *bun.DB
	media        *media.DiskSink
	auth         *auth.Authenticator
	notes        *contentservice.Service[*content.Note]
	posts        *contentservice.Service[*content.Post]
}

// Option customises how NewContainer builds components.
type Option func(*Container)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithFS sets the filesystem uploads are written to. Defaults to the OS
// filesystem.
func WithFS(fs afero.Fs) Option {
	return func(c *Container) { c.fs = fs }
}

// WithCacheService replaces the cache built from config. The container
// still closes it.
func WithCacheService(svc cache.CacheService) Option {
	return func(c *Container) { c.cacheService = svc }
}

// NewContainer validates cfg and builds every component. On failure the
// components built so far are closed.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (_ *Container, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctr := &Container{config: cfg}
	for _, opt := range opts {
		opt(ctr)
	}
	if ctr.logger == nil {
		if ctr.logger, err = cfg.Log.NewLogger(nil); err != nil {
			return nil, err
		}
	}
	if ctr.fs == nil {
		ctr.fs = afero.NewOsFs()
	}

	defer func() {
		if err != nil {
			_ = ctr.Close()
		}
	}()

	if ctr.cacheService == nil {
		if ctr.cacheService, err = cache.NewCacheService(ctx, cfg.Cache, ctr.logger); err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
	}
	if ctr.readThrough, err = cache.NewReadThrough(ctr.cacheService, cfg.Cache, ctr.logger); err != nil {
		return nil, fmt.Errorf("cache codec: %w", err)
	}

	if ctr.media, err = media.NewDiskSink(ctr.fs, cfg.Media, ctr.logger); err != nil {
		return nil, err
	}
	if ctr.auth, err = auth.New(cfg.Auth); err != nil {
		return nil, err
	}

	noteStore, postStore, err := ctr.openStores(ctx)
	if err != nil {
		return nil, err
	}

	svcOpts := []contentservice.Option{
		contentservice.WithLogger(ctr.logger),
		contentservice.WithMaxPageSize(cfg.Pagination.MaxPageSize),
		contentservice.WithMediaSink(ctr.media),
	}
	ctr.notes = contentservice.New(content.NoteKind, noteStore, ctr.readThrough, newNote, svcOpts...)
	ctr.posts = contentservice.New(content.PostKind, postStore, ctr.readThrough, newPost, svcOpts...)

	ctr.logger.Info("container ready", "store", cfg.Store.Driver, "cache", cfg.Cache.Driver)
	return ctr, nil
}

// NewContainerWithDefaults builds an in-memory container with a random
// signing secret and no users. It is meant for development and tests.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	cfg := config.Default()
	cfg.Auth.Secret = uuid.NewString()
	opts = append([]Option{WithFS(afero.NewMemMapFs())}, opts...)
	return NewContainer(ctx, cfg, opts...)
}

func newNote() *content.Note { return &content.Note{} }

func newPost() *content.Post { return &content.Post{} }

func (c *Container) openStores(ctx context.Context) (store.Store[*content.Note], store.Store[*content.Post], error) {
	if c.config.Store.Driver == config.StoreMemory {
		return memstore.New[*content.Note](), memstore.New[*content.Post](), nil
	}

	db, err := bunstore.Open(ctx, c.config.Store.Driver, c.config.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	c.db = db
	if err := bunstore.CreateSchema(ctx, db); err != nil {
		return nil, nil, err
	}
	return bunstore.New(db, newNote), bunstore.New(db, newPost), nil
}

// Handler builds the HTTP API over the container's services.
func (c *Container) Handler() http.Handler {
	deps := httpapi.Deps{
		Notes:   c.notes,
		Posts:   c.posts,
		Auth:    c.auth,
		Media:   c.media,
		Uploads: afero.NewHttpFs(afero.NewBasePathFs(c.fs, c.config.Media.Dir)),
		Logger:  c.logger,
	}
	return httpapi.New(deps, httpapi.Config{
		BodyLimit:     c.config.Server.BodyLimit,
		CORSOrigins:   c.config.Server.CORSOrigins,
		MaxPageSize:   c.config.Pagination.MaxPageSize,
		UploadsPrefix: c.config.Media.URLPrefix,
	}).Handler()
}

// Close releases the cache and the database connection. It is safe to
// call on a partially built container.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.cacheService != nil {
		if err := c.cacheService.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if codec, ok := c.readThrough.Codec.(interface{ Close() }); ok {
		codec.Close()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Config returns the validated configuration.
func (c *Container) Config() config.Config { return c.config }

// Logger returns the shared logger.
func (c *Container) Logger() *slog.Logger { return c.logger }

// CacheService returns the cache backend shared by both content kinds.
func (c *Container) CacheService() cache.CacheService { return c.cacheService }

// ReadThrough returns the cache plus codec used by the services.
func (c *Container) ReadThrough() cache.ReadThrough { return c.readThrough }

// DB is nil for the memory store.
func (c *Container) DB() *bun.DB { return c.db }

// FS returns the filesystem uploads are written to.
func (c *Container) FS() afero.Fs { return c.fs }

// Media returns the upload sink.
func (c *Container) Media() *media.DiskSink { return c.media }

// Auth returns the authenticator.
func (c *Container) Auth() *auth.Authenticator { return c.auth }

// Notes returns the note service.
func (c *Container) Notes() *contentservice.Service[*content.Note] { return c.notes }

// Posts returns the post service.
func (c *Container) Posts() *contentservice.Service[*content.Post] { return c.posts }

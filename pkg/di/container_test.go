package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/afero"

	"github.com/goliatone/go-content-cache/cache"
	"github.com/goliatone/go-content-cache/config"
	"github.com/goliatone/go-content-cache/contentservice"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Auth.Secret = testSecret
	cfg.Log.Level = "error"
	return cfg
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.TTL = 2 * time.Minute

	container, err := NewContainer(context.Background(), cfg, WithFS(afero.NewMemMapFs()))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if container.CacheService() == nil {
		t.Error("Container should have a non-nil cache service")
	}
	if container.Notes() == nil || container.Posts() == nil {
		t.Error("Container should build both content services")
	}
	if container.Auth() == nil {
		t.Error("Container should have an authenticator")
	}
	if container.Media() == nil {
		t.Error("Container should have a media sink")
	}
	if container.DB() != nil {
		t.Error("memory store should not open a database")
	}

	if got := container.ReadThrough().TTL; got != cfg.Cache.TTL {
		t.Errorf("Expected TTL %v, got %v", cfg.Cache.TTL, got)
	}
	if got := container.Config().Store.Driver; got != config.StoreMemory {
		t.Errorf("Expected store driver %q, got %q", config.StoreMemory, got)
	}
	if ok, _ := afero.DirExists(container.FS(), cfg.Media.Dir); !ok {
		t.Errorf("Expected upload dir %q to be created", cfg.Media.Dir)
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults(context.Background())
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	defaults := config.Default()
	if got := container.Config().Cache.TTL; got != defaults.Cache.TTL {
		t.Errorf("Expected default TTL %v, got %v", defaults.Cache.TTL, got)
	}
	if _, ok := container.FS().(*afero.MemMapFs); !ok {
		t.Errorf("Expected an in-memory filesystem, got %T", container.FS())
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := map[string]func(*config.Config){
		"missing secret": func(c *config.Config) { c.Auth.Secret = "" },
		"bad cache":      func(c *config.Config) { c.Cache.Memory.Capacity = 0 },
		"bad store":      func(c *config.Config) { c.Store.Driver = "oracle" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			if _, err := NewContainer(context.Background(), cfg); err == nil {
				t.Error("NewContainer() should fail with invalid config")
			}
		})
	}
}

func TestNewContainer_UnreachableRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Driver = cache.DriverRedis
	cfg.Cache.Redis.Addr = "127.0.0.1:1"

	if _, err := NewContainer(context.Background(), cfg, WithFS(afero.NewMemMapFs())); err == nil {
		t.Error("NewContainer() should fail when redis is unreachable")
	}
}

func TestNewContainer_Backends(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	tests := map[string]func(*config.Config){
		"redis cache": func(c *config.Config) {
			c.Cache.Driver = cache.DriverRedis
			c.Cache.Redis.Addr = mr.Addr()
		},
		"bolt cache": func(c *config.Config) {
			c.Cache.Driver = cache.DriverBolt
			c.Cache.Bolt.Path = filepath.Join(dir, "cache.db")
		},
		"sqlite store": func(c *config.Config) {
			c.Store.Driver = config.StoreSQLite
			c.Store.DSN = "file:" + filepath.Join(dir, "content.db")
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)

			container, err := NewContainer(context.Background(), cfg, WithFS(afero.NewMemMapFs()))
			if err != nil {
				t.Fatalf("NewContainer() failed: %v", err)
			}

			res, err := container.Notes().FindAll(context.Background(), contentservice.ListParams{})
			if err != nil {
				t.Fatalf("FindAll() failed: %v", err)
			}
			if res.Total != 0 || len(res.Items) != 0 {
				t.Errorf("Expected an empty listing, got %+v", res)
			}

			if err := container.Close(); err != nil {
				t.Errorf("Close() failed: %v", err)
			}
		})
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainerWithDefaults(context.Background())
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	cacheService1 := container.CacheService()
	cacheService2 := container.CacheService()
	if cacheService1 != cacheService2 {
		t.Error("CacheService() should return the same instance")
	}

	notes1 := container.Notes()
	notes2 := container.Notes()
	if notes1 != notes2 {
		t.Error("Notes() should return the same instance")
	}
	if container.ReadThrough().Service != container.CacheService() {
		t.Error("ReadThrough should wrap the container's cache service")
	}
}

func TestWithCacheService(t *testing.T) {
	svc, err := cache.NewCacheService(context.Background(), cache.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewCacheService() failed: %v", err)
	}

	container, err := NewContainerWithDefaults(context.Background(), WithCacheService(svc))
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	if container.CacheService() != svc {
		t.Error("Container should use the injected cache service")
	}
}

type closeCountingCache struct {
	cache.CacheService
	closed int
}

func (c *closeCountingCache) Close() error {
	c.closed++
	return c.CacheService.Close()
}

func TestNewContainer_FailureClosesBuiltComponents(t *testing.T) {
	svc, err := cache.NewCacheService(context.Background(), cache.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewCacheService() failed: %v", err)
	}
	counting := &closeCountingCache{CacheService: svc}

	readOnly := afero.NewReadOnlyFs(afero.NewMemMapFs())
	container, err := NewContainer(context.Background(), testConfig(), WithFS(readOnly), WithCacheService(counting))
	if err == nil {
		t.Fatal("NewContainer() should fail when the upload dir cannot be created")
	}
	if container != nil {
		t.Error("NewContainer() should not return a container on failure")
	}
	if counting.closed != 1 {
		t.Errorf("cache closed %d times, want 1", counting.closed)
	}
}

func TestContainer_CloseNil(t *testing.T) {
	var container *Container
	if err := container.Close(); err != nil {
		t.Errorf("Close() on nil container = %v", err)
	}
}

package cacheinfra

import (
	"context"
	"sort"
	"testing"
	"time"
)

// backend is the method set every adapter exposes. cache.CacheService has
// the same shape; it is restated here because cache imports this package.
type backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteMatching(ctx context.Context, pattern string) error
	Close() error
}

// runBackendContract exercises the behaviour shared by all adapters.
func runBackendContract(t *testing.T, svc backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		v, ok, err := svc.Get(ctx, "absent")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok || v != nil {
			t.Errorf("expected miss, got %q ok=%v", v, ok)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		if err := svc.Set(ctx, "note:1", []byte("payload"), time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		v, ok, err := svc.Get(ctx, "note:1")
		if err != nil || !ok {
			t.Fatalf("expected hit, ok=%v err=%v", ok, err)
		}
		if string(v) != "payload" {
			t.Errorf("expected payload, got %q", v)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := svc.Delete(ctx, "note:1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, ok, _ := svc.Get(ctx, "note:1"); ok {
			t.Error("expected key to be gone")
		}
		if err := svc.Delete(ctx, "never-existed"); err != nil {
			t.Errorf("deleting a missing key must not fail: %v", err)
		}
	})

	t.Run("delete matching", func(t *testing.T) {
		keys := []string{
			"notes:0:10:newest:",
			"notes:deleted:0:10:newest:",
			"notes:10:10:popular:go/rust",
			"note:abc",
			"posts:0:10:newest:",
			"notesx",
		}
		for _, k := range keys {
			if err := svc.Set(ctx, k, []byte("v"), time.Minute); err != nil {
				t.Fatalf("set %s: %v", k, err)
			}
		}

		if err := svc.DeleteMatching(ctx, "notes:*"); err != nil {
			t.Fatalf("delete matching: %v", err)
		}

		var left []string
		for _, k := range keys {
			if _, ok, _ := svc.Get(ctx, k); ok {
				left = append(left, k)
			}
		}
		sort.Strings(left)
		want := []string{"note:abc", "notesx", "posts:0:10:newest:"}
		if len(left) != len(want) {
			t.Fatalf("expected %v to survive, got %v", want, left)
		}
		for i := range want {
			if left[i] != want[i] {
				t.Errorf("expected %v to survive, got %v", want, left)
				break
			}
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}

	if cfg.NumShards != 256 {
		t.Errorf("expected NumShards to be 256, got %d", cfg.NumShards)
	}

	if cfg.TTL != 5*time.Minute {
		t.Errorf("expected TTL to be 5 minutes, got %v", cfg.TTL)
	}

	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			cfg:       DefaultConfig(),
			wantError: false,
		},
		{
			name: "invalid capacity - zero",
			cfg: Config{
				Capacity:           0,
				NumShards:          256,
				TTL:                5 * time.Minute,
				EvictionPercentage: 10,
			},
			wantError: true,
			errorMsg:  "config error in field Capacity: must be greater than 0",
		},
		{
			name: "invalid num shards - zero",
			cfg: Config{
				Capacity:           1000,
				NumShards:          0,
				TTL:                5 * time.Minute,
				EvictionPercentage: 10,
			},
			wantError: true,
			errorMsg:  "config error in field NumShards: must be greater than 0",
		},
		{
			name: "invalid TTL - zero",
			cfg: Config{
				Capacity:           1000,
				NumShards:          256,
				TTL:                0,
				EvictionPercentage: 10,
			},
			wantError: true,
			errorMsg:  "config error in field TTL: must be greater than 0",
		},
		{
			name: "invalid eviction percentage - too high",
			cfg: Config{
				Capacity:           1000,
				NumShards:          256,
				TTL:                5 * time.Minute,
				EvictionPercentage: 101,
			},
			wantError: true,
			errorMsg:  "config error in field EvictionPercentage: must be between 1 and 100",
		},
		{
			name: "invalid eviction interval",
			cfg: Config{
				Capacity:           1000,
				NumShards:          256,
				TTL:                5 * time.Minute,
				EvictionPercentage: 10,
				EvictionInterval:   -time.Second,
			},
			wantError: true,
			errorMsg:  "config error in field EvictionInterval: must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantError {
				if err == nil {
					t.Error("expected validation error but got none")
					return
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("expected error message %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no validation error but got: %v", err)
			}
		})
	}
}

func TestConfig_ToSturdycOptions(t *testing.T) {
	cfg := DefaultConfig()
	if n := len(cfg.ToSturdycOptions()); n != 0 {
		t.Errorf("expected no sturdyc options for default config, got %d", n)
	}

	cfg.EvictionInterval = time.Second
	if n := len(cfg.ToSturdycOptions()); n != 1 {
		t.Errorf("expected 1 sturdyc option with eviction interval, got %d", n)
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{
		Field:   "TestField",
		Message: "test message",
	}

	expected := "config error in field TestField: test message"
	if err.Error() != expected {
		t.Errorf("expected error message %q, got %q", expected, err.Error())
	}
}

func TestNewSturdycService_InvalidConfig(t *testing.T) {
	service, err := NewSturdycService(Config{NumShards: 1, TTL: time.Minute, EvictionPercentage: 10})
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if service != nil {
		t.Error("expected service to be nil when error occurs")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected ConfigError but got: %T", err)
	}
}

func TestSturdycService_Contract(t *testing.T) {
	service, err := NewSturdycService(Config{
		Capacity:           100,
		NumShards:          2,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	runBackendContract(t, service)
}

func TestSturdycService_PerEntryTTL(t *testing.T) {
	service, err := NewSturdycService(Config{
		Capacity:           100,
		NumShards:          2,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }
	ctx := context.Background()

	if err := service.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := service.Get(ctx, "short"); !ok {
		t.Fatal("expected fresh entry to hit")
	}

	now = now.Add(2 * time.Second)
	if _, ok, _ := service.Get(ctx, "short"); ok {
		t.Error("expected entry past its ttl to miss")
	}
}

func TestLiteralPrefix(t *testing.T) {
	tests := map[string]string{
		"notes:*":         "notes:",
		"posts:deleted:*": "posts:deleted:",
		"note:abc":        "note:abc",
		"*":               "",
		"n?tes:*":         "n",
	}
	for pattern, want := range tests {
		if got := literalPrefix(pattern); got != want {
			t.Errorf("literalPrefix(%q) = %q, want %q", pattern, got, want)
		}
	}
}

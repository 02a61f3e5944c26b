package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_URL", "redis://default:pw@cache:6380/2")
	t.Setenv("BOARD_EXPIRY_INTERVAL", "30")
	t.Setenv("BOARD_TIMEZONE", "UTC")
	t.Setenv("APP_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Addr != "cache:6380" || cfg.Redis.Password != "pw" || cfg.Redis.DB != 2 {
		t.Errorf("REDIS_URL not applied: %+v", cfg.Redis)
	}
	if got := cfg.Board.ExpiryInterval.Duration(); got != 30*time.Second {
		t.Errorf("expected bare number as seconds, got %v", got)
	}
	if got := cfg.Board.ReminderInterval.Duration(); got != time.Hour {
		t.Errorf("expected default reminder interval 1h, got %v", got)
	}
	if cfg.Board.FanoutConcurrency != 8 {
		t.Errorf("expected default fan-out concurrency 8, got %d", cfg.Board.FanoutConcurrency)
	}
	if cfg.App.Level() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.App.Level())
	}
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"no redis", map[string]string{"STORE_DRIVER": "memory"}},
		{"postgres without dsn", map[string]string{"STORE_DRIVER": "postgres", "REDIS_ADDR": "x:1"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo", "REDIS_ADDR": "x:1"}},
		{"bad timezone", map[string]string{"STORE_DRIVER": "memory", "REDIS_ADDR": "x:1", "BOARD_TIMEZONE": "Mars/Olympus"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("REDIS_ADDR", "")
			t.Setenv("REDIS_URL", "")
			t.Setenv("PG_DSN", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.App.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr: %s", cfg.App.HTTPAddr)
	}
	if cfg.App.CacheTTL != time.Hour {
		t.Fatalf("unexpected cache ttl: %v", cfg.App.CacheTTL)
	}
	if cfg.App.SnapshotTTL != 24*time.Hour {
		t.Fatalf("unexpected snapshot ttl: %v", cfg.App.SnapshotTTL)
	}
	if cfg.App.DefaultMaxResults != 10 || cfg.App.HistoryPageSize != 50 {
		t.Fatalf("unexpected limits: %+v", cfg.App)
	}
}

func TestLoad_FileWithDurationsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
  "app": {"http_addr": ":9090", "cache_ttl": "30m"},
  "redis": {"addr": "redis:6379"}
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":9090" {
		t.Fatalf("file value not applied: %s", cfg.App.HTTPAddr)
	}
	if cfg.App.CacheTTL != 30*time.Minute {
		t.Fatalf("duration string not parsed: %v", cfg.App.CacheTTL)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("redis addr not applied: %s", cfg.Redis.Addr)
	}
	// 未设置的字段回退为默认值
	if cfg.App.SnapshotTTL != 24*time.Hour || cfg.App.ServiceName != "smart-shopping-api" {
		t.Fatalf("defaults not applied: %+v", cfg.App)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_HTTP_ADDR", ":7070")
	t.Setenv("APP_CACHE_TTL", "2h")
	t.Setenv("REDIS_ADDR", "override:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":7070" {
		t.Fatalf("env override not applied: %s", cfg.App.HTTPAddr)
	}
	if cfg.App.CacheTTL != 2*time.Hour {
		t.Fatalf("env ttl override not applied: %v", cfg.App.CacheTTL)
	}
	if cfg.Redis.Addr != "override:6379" {
		t.Fatalf("redis env override not applied: %s", cfg.Redis.Addr)
	}
}

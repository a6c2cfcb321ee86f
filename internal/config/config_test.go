package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("ACCESS_TTL_MINUTES", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("SESSION_IDLE_MINUTES", "")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.AccessTTL != time.Hour {
		t.Fatalf("unexpected access ttl %s", cfg.AccessTTL)
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.SessionIdle != 30*time.Minute {
		t.Fatalf("unexpected session idle %s", cfg.SessionIdle)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("ACCESS_TTL_MINUTES", "15")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "bogus")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %s", cfg.AccessTTL)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected default shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if !cfg.MinioUseSSL {
		t.Fatalf("expected ssl enabled")
	}
}

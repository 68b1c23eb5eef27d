package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.ServiceName != "oddsfeed-api" {
		t.Fatalf("unexpected ServiceName: %q", cfg.ServiceName)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected HTTPAddr: %q", cfg.HTTPAddr)
	}
	if len(cfg.FeedProviders) != 3 || cfg.FeedProviders[0] != "oddsprime" {
		t.Fatalf("unexpected FeedProviders: %v", cfg.FeedProviders)
	}
	if cfg.ResolutionAcceptThreshold != 0.85 {
		t.Fatalf("unexpected ResolutionAcceptThreshold: %v", cfg.ResolutionAcceptThreshold)
	}
	if cfg.AggregationTimeTolerance != 30*time.Minute {
		t.Fatalf("unexpected AggregationTimeTolerance: %s", cfg.AggregationTimeTolerance)
	}
	if cfg.LifecycleStalenessThreshold != 48*time.Hour {
		t.Fatalf("unexpected LifecycleStalenessThreshold: %s", cfg.LifecycleStalenessThreshold)
	}
	if len(cfg.SyncSportIDs) != 1 || cfg.SyncSportIDs[0] != 1 {
		t.Fatalf("unexpected SyncSportIDs: %v", cfg.SyncSportIDs)
	}
	if !cfg.SyncSweepAfterCycle {
		t.Fatalf("expected SyncSweepAfterCycle=true by default")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "uptrace-dsn=https://token@api.uptrace.dev?grpc=4317")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev?grpc=4317" {
		t.Fatalf("unexpected UptraceDSN: %q", cfg.UptraceDSN)
	}
}

func TestLoad_FeedRequiresCredentialsWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("FEED_ENABLED", "true")
	t.Setenv("FEED_BASE_URL_MAP", "oddsprime=https://api.oddsprime.example.com")
	t.Setenv("FEED_API_KEY_MAP", "oddsprime=key-1")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when FEED_ENABLED=true with missing provider credentials")
	}
}

func TestLoad_FeedMapParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("FEED_ENABLED", "true")
	t.Setenv("FEED_PROVIDERS", "oddsprime,betstream")
	t.Setenv("FEED_BASE_URL_MAP", "oddsprime=https://api.oddsprime.example.com, betstream=https://feeds.betstream.example.io/v2")
	t.Setenv("FEED_API_KEY_MAP", "oddsprime=key-1,betstream=key-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FeedBaseURLByProvider["betstream"] != "https://feeds.betstream.example.io/v2" {
		t.Fatalf("unexpected betstream base URL: %q", cfg.FeedBaseURLByProvider["betstream"])
	}
	if cfg.FeedAPIKeyByProvider["oddsprime"] != "key-1" {
		t.Fatalf("unexpected oddsprime api key")
	}
}

func TestLoad_QStashRequiresTokensWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("QSTASH_ENABLED", "true")
	t.Setenv("QSTASH_TOKEN", "qstash-token")
	t.Setenv("QSTASH_TARGET_BASE_URL", "https://oddsfeed.example.com")
	t.Setenv("INTERNAL_JOB_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when QSTASH_ENABLED=true without INTERNAL_JOB_TOKEN")
	}
}

func TestLoad_RejectsBadDurations(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("CACHE_TTL", "not-a-duration")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid CACHE_TTL")
	}
}

func TestParseStringMap(t *testing.T) {
	out, err := parseStringMap("A=https://one.example.com,b=two")
	if err != nil {
		t.Fatalf("parse map: %v", err)
	}
	if out["a"] != "https://one.example.com" {
		t.Fatalf("expected lowercased key, got %v", out)
	}
	if out["b"] != "two" {
		t.Fatalf("unexpected value for b: %q", out["b"])
	}

	if _, err := parseStringMap("broken-item"); err == nil {
		t.Fatalf("expected error for item without separator")
	}
}

func TestParseInt64CSV(t *testing.T) {
	out, err := parseInt64CSV("1, 2,3")
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(out) != 3 || out[2] != 3 {
		t.Fatalf("unexpected values: %v", out)
	}

	if _, err := parseInt64CSV("0"); err == nil {
		t.Fatalf("expected error for non-positive id")
	}
	if _, err := parseInt64CSV("x"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
}

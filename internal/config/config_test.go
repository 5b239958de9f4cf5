package config

import (
	"testing"
	"time"
)

func TestDefaultsWithEmptyEnv(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.KafkaTopic != "ride-events" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Fatalf("wrong read timeout: %s", cfg.ReadTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("HTTP_READ_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.HTTPAddr != ":9999" || cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("broker list parsed wrong: %v", cfg.KafkaBrokers)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level not lowered: %s", cfg.LogLevel)
	}
}

func TestInvalidValuesCollected(t *testing.T) {
	t.Setenv("HTTP_WRITE_TIMEOUT", "soon")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("MIGRATE", "true")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("MIGRATE without PG_DSN must fail")
	}
}

package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "PG_DSN", "MIGRATE", "KAFKA_BROKERS", "BOOKING_CANDIDATE_LIMIT", "BCRYPT_COST", "STRIPE_CURRENCY"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.CandidateLimit != 8 || cfg.StripeCurrency != "usd" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.KafkaLocationTopic != "driver-locations" || cfg.KafkaRideEventsTopic != "ride-events" {
		t.Fatalf("unexpected topics: %+v", cfg)
	}
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("HTTP_READ_TIMEOUT", "2s")
	t.Setenv("PG_DSN", "postgres://localhost/rides")
	t.Setenv("MIGRATE", "TRUE")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("STRIPE_CURRENCY", "NGN")
	t.Setenv("BOOKING_CANDIDATE_LIMIT", "3")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.ReadTimeout != 2*time.Second || !cfg.RunMigrations {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.StripeCurrency != "ngn" || cfg.CandidateLimit != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_BROKER", "legacy:9092")
	t.Setenv("CONSUMER_RETRY_DELAY", "50ms")
	cfg, err := LoadConsumerConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "legacy:9092" {
		t.Fatalf("expected legacy broker fallback, got %v", cfg.KafkaBrokers)
	}
	if cfg.RetryDelay != 50*time.Millisecond || cfg.RedisGeoKey != "drivers_geo" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}

	t.Setenv("CONSUMER_RETRY_ATTEMPTS", "0")
	if _, err := LoadConsumerConfig(); err == nil {
		t.Fatal("expected error for zero retry attempts")
	}
}

func TestLoadServerConfigJoinsErrors(t *testing.T) {
	t.Setenv("HTTP_WRITE_TIMEOUT", "soon")
	t.Setenv("BOOKING_CANDIDATE_LIMIT", "0")
	t.Setenv("BCRYPT_COST", "99")
	t.Setenv("MIGRATE", "true")
	t.Setenv("PG_DSN", "")

	_, err := LoadServerConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"HTTP_WRITE_TIMEOUT", "BOOKING_CANDIDATE_LIMIT", "BCRYPT_COST", "PG_DSN"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

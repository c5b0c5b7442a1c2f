package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORAGE_MODE", "")
	t.Setenv("PENDING_BOOKING_TTL", "")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.StorageMode != StorageMemory || cfg.PendingBookingTTL != 24*time.Hour || cfg.CancellationWindow != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.OutboxMaxAttempts != 10 {
		t.Fatalf("outbox max attempts = %d", cfg.OutboxMaxAttempts)
	}
	if cfg.CalendarFetchTO != 15*time.Second || len(cfg.RetryBackoff) != 3 {
		t.Fatalf("fetch timeout %v backoff %v", cfg.CalendarFetchTO, cfg.RetryBackoff)
	}
}

func TestFromEnvErrors(t *testing.T) {
	cases := []struct {
		name, key, value, want string
	}{
		{"bad duration", "PENDING_BOOKING_TTL", "tomorrow", "PENDING_BOOKING_TTL"},
		{"bad bool", "S3_USE_SSL", "maybe", "S3_USE_SSL"},
		{"mongo without uri", "STORAGE_MODE", "mongo", "MONGO_URI"},
		{"unknown storage", "STORAGE_MODE", "sqlite", "STORAGE_MODE"},
		{"bad backoff", "RETRY_BACKOFF", "1s,soon", "RETRY_BACKOFF"},
		{"negative attempts", "OUTBOX_MAX_ATTEMPTS", "-1", "OUTBOX_MAX_ATTEMPTS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("MONGO_URI", "")
			t.Setenv(tc.key, tc.value)
			_, err := FromEnv()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

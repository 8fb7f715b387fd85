package config

import (
	"testing"
	"time"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", testEncryptionKey)
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Venue.RequestsPerSecond != 5 {
		t.Errorf("Venue.RequestsPerSecond = %v, want 5", cfg.Venue.RequestsPerSecond)
	}
	if cfg.Guard.StaleTicker != 30*time.Second {
		t.Errorf("Guard.StaleTicker = %v, want 30s", cfg.Guard.StaleTicker)
	}
	if cfg.Guard.StreamStaleTicker != 90*time.Second {
		t.Errorf("Guard.StreamStaleTicker = %v, want 90s", cfg.Guard.StreamStaleTicker)
	}
	if cfg.Sentinel.GasSpikeWei != 150_000_000_000 {
		t.Errorf("Sentinel.GasSpikeWei = %d, want 150 gwei", cfg.Sentinel.GasSpikeWei)
	}
}

func TestLoadVenueRpsFractional(t *testing.T) {
	// Лимит площадки бывает дробным (например 1 запрос в 2 секунды)
	setRequiredEnv(t)
	t.Setenv("VENUE_RPS", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Venue.RequestsPerSecond != 0.5 {
		t.Errorf("Venue.RequestsPerSecond = %v, want 0.5", cfg.Venue.RequestsPerSecond)
	}
}

func TestLoadGuardStaleKnobs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GUARD_STALE_TICKER", "45s")
	t.Setenv("GUARD_STREAM_STALE_TICKER", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Guard.StaleTicker != 45*time.Second {
		t.Errorf("Guard.StaleTicker = %v, want 45s", cfg.Guard.StaleTicker)
	}
	if cfg.Guard.StreamStaleTicker != 2*time.Minute {
		t.Errorf("Guard.StreamStaleTicker = %v, want 2m", cfg.Guard.StreamStaleTicker)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"missing encryption key", "ENCRYPTION_KEY", ""},
		{"short encryption key", "ENCRYPTION_KEY", "too-short"},
		{"zero venue rps", "VENUE_RPS", "0"},
		{"negative venue rps", "VENUE_RPS", "-1.5"},
		{"negative drawdown", "GUARD_MAX_GLOBAL_DRAWDOWN_USD", "-100"},
		{"negative stream stale", "GUARD_STREAM_STALE_TICKER", "-1s"},
		{"bad server port", "SERVER_PORT", "99999"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%q: expected error", tc.key, tc.value)
			}
		})
	}
}

func TestParseOperatorTokens(t *testing.T) {
	tokens := parseOperatorTokens("alice:$2a$12$hash1;bob:$2a$12$hash2; ;broken")
	if len(tokens) != 2 {
		t.Fatalf("len(tokens) = %d, want 2", len(tokens))
	}
	if tokens["alice"] != "$2a$12$hash1" {
		t.Errorf("alice = %q", tokens["alice"])
	}
	if tokens["bob"] != "$2a$12$hash2" {
		t.Errorf("bob = %q", tokens["bob"])
	}
}

func TestDSNWithoutPassword(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "svc", Password: "secret", Name: "tradeguard", SSLMode: "disable"}
	dsn := db.DSNWithoutPassword()
	if dsn != "host=db port=5432 user=svc dbname=tradeguard sslmode=disable" {
		t.Errorf("DSNWithoutPassword = %q", dsn)
	}
}

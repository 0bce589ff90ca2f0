// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	SecretKey       []byte // 32-byte AES-256 key; nil disables credential storage
	APIBaseURL      string
	APITimeout      time.Duration
	ListenAddr      string
	DBPath          string
	FetchLimit      int
	AuditCapacity   int
	AdHocCooldown   time.Duration
	AdHocDailyQuota int
}

// Load reads configuration from environment variables and returns a validated
// Config. BOOSTPANEL_SECRET_KEY (64 hex chars) is optional; without it the
// process starts but credential storage is disabled and every watch start
// fails, which is the documented degraded mode rather than a crash.
// Optional variables with defaults: BOOSTPANEL_API_BASE_URL
// (https://api.example.com), BOOSTPANEL_API_TIMEOUT (10s),
// BOOSTPANEL_LISTEN_ADDR (127.0.0.1:8080), BOOSTPANEL_DB_PATH
// (boostpanel.db), BOOSTPANEL_FETCH_LIMIT (10), BOOSTPANEL_AUDIT_CAPACITY
// (500), BOOSTPANEL_ADHOC_COOLDOWN (15m), BOOSTPANEL_ADHOC_DAILY_QUOTA (10).
func Load() (*Config, error) {
	cfg := &Config{
		APIBaseURL:      "https://api.example.com",
		APITimeout:      10 * time.Second,
		ListenAddr:      "127.0.0.1:8080",
		DBPath:          "boostpanel.db",
		FetchLimit:      10,
		AuditCapacity:   500,
		AdHocCooldown:   15 * time.Minute,
		AdHocDailyQuota: 10,
	}

	if v, ok := os.LookupEnv("BOOSTPANEL_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("BOOSTPANEL_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("BOOSTPANEL_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("BOOSTPANEL_API_BASE_URL"); ok && v != "" {
		cfg.APIBaseURL = v
	}
	if v, ok := os.LookupEnv("BOOSTPANEL_LISTEN_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("BOOSTPANEL_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}

	var err error
	if cfg.APITimeout, err = durationEnv("BOOSTPANEL_API_TIMEOUT", cfg.APITimeout); err != nil {
		return nil, err
	}
	if cfg.AdHocCooldown, err = durationEnv("BOOSTPANEL_ADHOC_COOLDOWN", cfg.AdHocCooldown); err != nil {
		return nil, err
	}
	if cfg.FetchLimit, err = intEnv("BOOSTPANEL_FETCH_LIMIT", cfg.FetchLimit); err != nil {
		return nil, err
	}
	if cfg.AuditCapacity, err = intEnv("BOOSTPANEL_AUDIT_CAPACITY", cfg.AuditCapacity); err != nil {
		return nil, err
	}
	if cfg.AdHocDailyQuota, err = intEnv("BOOSTPANEL_ADHOC_DAILY_QUOTA", cfg.AdHocDailyQuota); err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", name, v)
	}
	return parsed, nil
}

func intEnv(name string, fallback int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", name, v)
	}
	return parsed, nil
}

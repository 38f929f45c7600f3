package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	DBConn        string
	LogLevel      string
	JWTSecret     string
	HMACSecret    string
	EncryptionKey string

	// Gw2Endpoint is concatenated directly with "v2/{resource}", so it keeps its trailing slash.
	Gw2Endpoint string
	Gw2Timeout  time.Duration

	RedisAddr       string
	PvpSyncSchedule string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5432 user=armory password=armory dbname=armory sslmode=disable"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		HMACSecret:      getEnv("HMAC_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		EncryptionKey:   getEnv("ENCRYPTION_KEY", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		Gw2Endpoint:     getEnv("GW2_ENDPOINT", "https://api.guildwars2.com/"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		PvpSyncSchedule: getEnv("PVP_SYNC_SCHEDULE", "@every 1h"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SenderEmail:     getEnv("SENDER_EMAIL", "noreply@gw2armory.com"),
	}

	timeout, err := time.ParseDuration(getEnv("GW2_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GW2_TIMEOUT: %w", err)
	}
	cfg.Gw2Timeout = timeout

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HMACSecret == "" {
		return nil, fmt.Errorf("HMAC_SECRET is required")
	}
	if _, err := cfg.EncryptionKeyBytes(); err != nil {
		return nil, err
	}
	if cfg.Gw2Endpoint == "" {
		return nil, fmt.Errorf("GW2_ENDPOINT is required")
	}
	if !strings.HasSuffix(cfg.Gw2Endpoint, "/") {
		cfg.Gw2Endpoint += "/"
	}

	return cfg, nil
}

// EncryptionKeyBytes decodes ENCRYPTION_KEY into the 32 byte key used to seal API tokens.
func (c *Config) EncryptionKeyBytes() ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return key, fmt.Errorf("ENCRYPTION_KEY must be hex encoded: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("ENCRYPTION_KEY must be 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// EmailEnabled reports whether SMTP settings are present.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

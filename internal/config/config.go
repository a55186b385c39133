package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything the server reads from the environment.
type Config struct {
	ServerPort string
	AppEnv     string // development / production
	LogLevel   string
	CorsOrigin string

	// Grace period a disconnected session survives before eviction.
	ReconnectTimeout time.Duration

	// ICE / TURN side-channel.
	StunURLs          string
	TurnURLs          string
	TurnUsername      string
	TurnCredential    string
	TurnSecret        string
	TurnCredentialTTL time.Duration
}

// Load reads configuration from the environment, preferring a .env file
// when one exists. Missing values fall back to development defaults.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional, plain env vars win

	cfg := &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CorsOrigin:     getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		StunURLs:       os.Getenv("STUN_URLS"),
		TurnURLs:       os.Getenv("TURN_URLS"),
		TurnUsername:   os.Getenv("TURN_USERNAME"),
		TurnCredential: os.Getenv("TURN_CREDENTIAL"),
		TurnSecret:     os.Getenv("TURN_SECRET"),
	}

	reconnectMs, err := getEnvInt("RECONNECT_TIMEOUT_MS", 30_000)
	if err != nil {
		return nil, err
	}
	cfg.ReconnectTimeout = time.Duration(reconnectMs) * time.Millisecond

	ttlSec, err := getEnvInt("TURN_CREDENTIAL_TTL", 86_400)
	if err != nil {
		return nil, err
	}
	cfg.TurnCredentialTTL = time.Duration(ttlSec) * time.Second

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL %q, using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return n, nil
}

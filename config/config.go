package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://boardgamegeek.com/xmlapi2"

type Config struct {
	Token      string
	Port       int
	LogLevel   string
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

func Load() *Config {
	// Local development convenience; an existing environment always wins
	// over the file, matching how the cloud deployments are configured.
	if err := godotenv.Load("env"); err == nil {
		log.Debug().Msg("loaded local env file")
	}

	cfg := &Config{
		Token:      strings.TrimSpace(os.Getenv("BGG_TOKEN")),
		Port:       getEnvInt("BGG_PROXY_PORT", 8000),
		LogLevel:   strings.TrimSpace(getEnv("BGG_PROXY_LOG_LEVEL", "info")),
		BaseURL:    strings.TrimRight(getEnv("BGG_BASE_URL", defaultBaseURL), "/"),
		MaxRetries: getEnvInt("BGG_MAX_RETRIES", 5),
		RetryDelay: time.Duration(getEnvInt("BGG_RETRY_DELAY_SECONDS", 5)) * time.Second,
		Timeout:    time.Duration(getEnvInt("BGG_TIMEOUT_SECONDS", 30)) * time.Second,
	}
	if cfg.Token == "" {
		log.Warn().Msg("BGG token not set; set BGG_TOKEN in the environment or the local env file")
	}
	return cfg
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.Port))
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"tokenProvided": c.Token != "",
		"port":          c.Port,
		"logLevel":      c.LogLevel,
		"baseURL":       c.BaseURL,
		"maxRetries":    c.MaxRetries,
		"retryDelay":    c.RetryDelay.String(),
		"timeout":       c.Timeout.String(),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		iv, err := strconv.Atoi(v)
		if err == nil {
			return iv
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer in environment; using default")
	}
	return def
}

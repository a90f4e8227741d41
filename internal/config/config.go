package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const devSessionSecret = "dev-secret-change-in-production"

// mockClientIDPrefix marks GitHub client ids served by the offline mock provider.
const mockClientIDPrefix = "MOCK_"

var (
	ErrDevSecretInProduction  = errors.New("SESSION_SECRET must be set in production environment")
	ErrMockGitHubInProduction = errors.New("GITHUB_CLIENT_ID must be a real client id in production environment")
	ErrGitHubSecretMissing    = errors.New("GITHUB_CLIENT_SECRET must be set in production environment")
)

type Config struct {
	Port        string
	Env         string
	AppURL      string
	DatabaseDSN string

	SessionSecret string
	SessionTTL    time.Duration
	TOTPIssuer    string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURL  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		SessionSecret: getEnv("SESSION_SECRET", devSessionSecret),
		SessionTTL:    getDuration("SESSION_TTL", 30*24*time.Hour),
		TOTPIssuer:    getEnv("TOTP_ISSUER", "Epic Notes"),

		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", mockClientIDPrefix+"GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", "hello@epicstack.dev"),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 10),
	}
	cfg.AppURL = strings.TrimRight(getEnv("APP_URL", "http://localhost:"+cfg.Port), "/")
	cfg.GitHubRedirectURL = getEnv("GITHUB_REDIRECT_URL", cfg.AppURL+"/auth/github/callback")

	if cfg.IsProduction() {
		if cfg.SessionSecret == devSessionSecret {
			return Config{}, ErrDevSecretInProduction
		}
		if cfg.DatabaseDSN == "" {
			return Config{}, errors.New("DATABASE_DSN must be set in production environment")
		}
		if strings.HasPrefix(cfg.GitHubClientID, mockClientIDPrefix) {
			return Config{}, ErrMockGitHubInProduction
		}
		if cfg.GitHubClientSecret == "" {
			return Config{}, ErrGitHubSecretMissing
		}
	}

	return cfg, nil
}

// IsProduction reports whether ENV is production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "default", fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number in environment, using default", "key", key, "default", fallback)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "default", fallback)
		return fallback
	}
	return d
}

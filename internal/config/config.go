package config

import (
	"os"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Google    GoogleConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	BaseURL        string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type RedisConfig struct {
	Addr     string
	Password string
}

// AuthConfig values are raw strings from the environment; the auth service
// parses and validates them at construction time.
type AuthConfig struct {
	Secret         string
	SessionTTL     string
	StoreTimeout   string
	CookieSecure   string
	CookieSameSite string
	CookieDomain   string
	CookiePath     string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type RateLimitConfig struct {
	// CreateTask is a "count/window" rule, e.g. "3/1m".
	CreateTask string
	// FailOpen is the deliberate operational override for limiter-store
	// outages. Anything but an explicit "true" keeps fail-closed behavior.
	FailOpen string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:           getenv("PORT", "8080"),
			AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
			BaseURL:        getenv("BASE_URL", "http://localhost:8080"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Auth: AuthConfig{
			Secret:         os.Getenv("AUTH_SECRET"),
			SessionTTL:     getenv("SESSION_TTL", "720h"),
			StoreTimeout:   getenv("STORE_TIMEOUT", "5s"),
			CookieSecure:   os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite: os.Getenv("AUTH_COOKIE_SAMESITE"),
			CookieDomain:   os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookiePath:     os.Getenv("AUTH_COOKIE_PATH"),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("AUTH_GOOGLE_ID"),
			ClientSecret: os.Getenv("AUTH_GOOGLE_SECRET"),
			RedirectURL:  os.Getenv("AUTH_GOOGLE_REDIRECT_URL"),
		},
		RateLimit: RateLimitConfig{
			CreateTask: getenv("RATE_LIMIT_CREATE_TASK", "3/1m"),
			FailOpen:   os.Getenv("RATE_LIMIT_FAIL_OPEN"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

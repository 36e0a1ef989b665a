// Package dbconfig resolves the Postgres connection settings shared by the
// API service, the outbox relay, the gateway and the seed tooling.
package dbconfig

import (
	"net/url"
	"os"
)

// Config is the connection target. All fields come from DB_* environment
// variables; every service in the deployment reads the same set.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// FromEnv builds a Config from DB_* environment variables, defaulting to a
// local development database.
func FromEnv() Config {
	return Config{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER", "postgres"),
		Password: envOr("DB_PASSWORD", "postgres"),
		Database: envOr("DB_NAME", "draftroom"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}
}

// DSN renders the connection URL for lib/pq and pgx. Credentials are
// URL-escaped so passwords with reserved characters survive.
func (c Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

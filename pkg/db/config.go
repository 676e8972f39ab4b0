// Package db owns the Postgres connection, schema bootstrap and menu
// seeding.
package db

import (
	"fmt"
	"os"
	"strconv"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// URL, when set, wins over the discrete fields.
	URL string
}

// LoadPostgresConfig reads DATABASE_URL or the discrete DB_* variables,
// falling back to local-development defaults.
func LoadPostgresConfig() PostgresConfig {
	cfg := PostgresConfig{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envIntOr("DB_PORT", 5432),
		User:     envOr("DB_USER", "postgres"),
		Password: envOr("DB_PASSWORD", "postgres"),
		DBName:   envOr("DB_NAME", "coffee_shop"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
		URL:      os.Getenv("DATABASE_URL"),
	}
	return cfg
}

// DSN renders the connection string lib/pq expects.
func (c PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

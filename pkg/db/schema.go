package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create every table the service touches. Statements
// are idempotent so the server can bootstrap a fresh database and
// restart against an existing one.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

	`CREATE TABLE IF NOT EXISTS users (
		id            SERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'customer',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token_hash TEXT PRIMARY KEY,
		user_id    INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS coffees (
		id          SERIAL PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		coffee_type TEXT NOT NULL,
		price       NUMERIC(10,2) NOT NULL,
		rating      NUMERIC(3,2) NOT NULL DEFAULT 0,
		image_url   TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id                     UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id                INT NOT NULL REFERENCES users(id),
		status                 TEXT NOT NULL DEFAULT 'pending',
		payment_status         TEXT NOT NULL DEFAULT 'unpaid',
		total_price            NUMERIC(10,2) NOT NULL,
		estimated_prep_minutes INT NOT NULL DEFAULT 0,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS order_items (
		id             SERIAL PRIMARY KEY,
		order_id       UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		coffee_id      INT NOT NULL REFERENCES coffees(id),
		quantity       INT NOT NULL,
		price_snapshot NUMERIC(10,2) NOT NULL,
		subtotal       NUMERIC(10,2) NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS reviews (
		id         SERIAL PRIMARY KEY,
		user_id    INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		coffee_id  INT NOT NULL REFERENCES coffees(id) ON DELETE CASCADE,
		rating     INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, coffee_id)
	)`,

	`CREATE TABLE IF NOT EXISTS coffee_availability (
		coffee_id       INT PRIMARY KEY REFERENCES coffees(id) ON DELETE CASCADE,
		status          TEXT NOT NULL DEFAULT 'available',
		reason          TEXT NOT NULL DEFAULT '',
		available_from  TIMESTAMPTZ,
		available_until TIMESTAMPTZ,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS pricing_rules (
		rule_id     UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		rule_type   TEXT NOT NULL,
		priority    INT NOT NULL DEFAULT 0,
		rule_config JSONB NOT NULL,
		coffee_ids  INT[] NOT NULL DEFAULT '{}',
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		valid_from  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		valid_until TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS prep_time_config (
		coffee_id           INT PRIMARY KEY REFERENCES coffees(id) ON DELETE CASCADE,
		base_minutes        INT NOT NULL,
		per_additional_item INT NOT NULL DEFAULT 0,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS loyalty_config (
		config_id         INT PRIMARY KEY,
		points_per_dollar NUMERIC(10,4) NOT NULL,
		bonus_multipliers JSONB NOT NULL DEFAULT '{}',
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS customer_loyalty (
		customer_id     INT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		points_balance  INT NOT NULL DEFAULT 0,
		lifetime_points INT NOT NULL DEFAULT 0,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS rule_audit_log (
		audit_id   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		order_id   UUID NOT NULL,
		rule_type  TEXT NOT NULL,
		rule_id    UUID,
		rule_data  JSONB NOT NULL,
		effect     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_coffee_id ON reviews (coffee_id)`,
	`CREATE INDEX IF NOT EXISTS idx_rule_audit_log_order_id ON rule_audit_log (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens (user_id)`,
}

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

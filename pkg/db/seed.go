package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedCoffee struct {
	Name              string `yaml:"name"`
	CoffeeType        string `yaml:"coffee_type"`
	Price             string `yaml:"price"`
	ImageURL          string `yaml:"image_url"`
	Description       string `yaml:"description"`
	BaseMinutes       int    `yaml:"base_minutes"`
	PerAdditionalItem int    `yaml:"per_additional_item"`
}

type seedFile struct {
	Coffees []seedCoffee `yaml:"coffees"`
	Loyalty struct {
		PointsPerDollar  string            `yaml:"points_per_dollar"`
		BonusMultipliers map[string]string `yaml:"bonus_multipliers"`
	} `yaml:"loyalty"`
}

// Seed loads the embedded menu into an empty database. Coffees are
// only inserted when the coffees table is empty; the loyalty config
// row is inserted only when missing, so operator edits survive
// restarts.
func Seed(ctx context.Context, db *sql.DB) error {
	var seed seedFile
	if err := yaml.Unmarshal(seedYAML, &seed); err != nil {
		return fmt.Errorf("parse seed data: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coffees`).Scan(&count); err != nil {
		return fmt.Errorf("count coffees: %w", err)
	}
	if count == 0 {
		if err := seedMenu(ctx, db, seed.Coffees); err != nil {
			return err
		}
	}
	return seedLoyalty(ctx, db, seed)
}

func seedMenu(ctx context.Context, db *sql.DB, coffees []seedCoffee) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, c := range coffees {
		var id int
		err := tx.QueryRowContext(ctx, `
			INSERT INTO coffees (name, coffee_type, price, image_url, description)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			c.Name, c.CoffeeType, c.Price, c.ImageURL, c.Description,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("seed coffee %q: %w", c.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prep_time_config (coffee_id, base_minutes, per_additional_item)
			VALUES ($1, $2, $3)`,
			id, c.BaseMinutes, c.PerAdditionalItem,
		); err != nil {
			return fmt.Errorf("seed prep time for %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	committed = true
	return nil
}

func seedLoyalty(ctx context.Context, db *sql.DB, seed seedFile) error {
	multipliers := seed.Loyalty.BonusMultipliers
	if multipliers == nil {
		multipliers = map[string]string{}
	}
	raw, err := json.Marshal(multipliers)
	if err != nil {
		return fmt.Errorf("encode bonus multipliers: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO loyalty_config (config_id, points_per_dollar, bonus_multipliers)
		VALUES (1, $1, $2::jsonb)
		ON CONFLICT (config_id) DO NOTHING`,
		seed.Loyalty.PointsPerDollar, raw,
	); err != nil {
		return fmt.Errorf("seed loyalty config: %w", err)
	}
	return nil
}

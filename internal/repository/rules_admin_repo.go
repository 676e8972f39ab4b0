package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/perkhub/coffee-shop-backend/internal/rules"
)

// RulesAdminRepo covers the admin-side writes to the rule tables the
// business rules engine reads. Every write is followed by a cache
// invalidation at the service layer, never here.
type RulesAdminRepo struct {
	db *sql.DB
}

func NewRulesAdminRepo(db *sql.DB) *RulesAdminRepo {
	return &RulesAdminRepo{db: db}
}

const pricingRuleColumns = `rule_id, rule_type, priority, rule_config, coffee_ids, is_active, valid_from, valid_until`

// InsertPricingRule persists a validated rule and returns it with its
// generated id and timestamps.
func (r *RulesAdminRepo) InsertPricingRule(ctx context.Context, rule *rules.PricingRule) (*rules.PricingRule, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO pricing_rules (rule_type, priority, rule_config, coffee_ids, is_active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+pricingRuleColumns,
		string(rule.RuleType), rule.Priority, string(rule.RuleConfig),
		coffeeIDsArray(rule.CoffeeIDs), rule.IsActive, rule.ValidFrom, rule.ValidUntil)
	created, err := scanPricingRule(row)
	if err != nil {
		return nil, fmt.Errorf("insert pricing rule: %w", err)
	}
	return created, nil
}

// PricingRuleUpdate is a partial rule update; nil fields are left
// unchanged.
type PricingRuleUpdate struct {
	Priority   *int
	RuleConfig json.RawMessage
	CoffeeIDs  *[]int
	IsActive   *bool
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

func (r *RulesAdminRepo) UpdatePricingRule(ctx context.Context, ruleID uuid.UUID, upd PricingRuleUpdate) (*rules.PricingRule, error) {
	var cfg any
	if upd.RuleConfig != nil {
		cfg = string(upd.RuleConfig)
	}
	var ids any
	if upd.CoffeeIDs != nil {
		ids = coffeeIDsArray(*upd.CoffeeIDs)
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE pricing_rules SET
			priority    = COALESCE($2::int, priority),
			rule_config = COALESCE($3::jsonb, rule_config),
			coffee_ids  = COALESCE($4::int[], coffee_ids),
			is_active   = COALESCE($5::boolean, is_active),
			valid_from  = COALESCE($6::timestamptz, valid_from),
			valid_until = COALESCE($7::timestamptz, valid_until)
		WHERE rule_id = $1
		RETURNING `+pricingRuleColumns,
		ruleID, upd.Priority, cfg, ids, upd.IsActive, upd.ValidFrom, upd.ValidUntil)
	updated, err := scanPricingRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPricingRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update pricing rule: %w", err)
	}
	return updated, nil
}

func (r *RulesAdminRepo) DeletePricingRule(ctx context.Context, ruleID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pricing_rules WHERE rule_id = $1`, ruleID)
	if err != nil {
		return fmt.Errorf("delete pricing rule: %w", err)
	}
	return requireRow(res, ErrPricingRuleNotFound)
}

// AllPricingRules lists every rule, active and inactive, for the
// admin UI. The engine itself only ever loads active rules.
func (r *RulesAdminRepo) AllPricingRules(ctx context.Context) ([]rules.PricingRule, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+pricingRuleColumns+" FROM pricing_rules ORDER BY priority DESC, valid_from DESC")
	if err != nil {
		return nil, fmt.Errorf("list pricing rules: %w", err)
	}
	defer rows.Close()

	out := []rules.PricingRule{}
	for rows.Next() {
		rule, err := scanPricingRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pricing rule: %w", err)
		}
		out = append(out, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing rules: %w", err)
	}
	return out, nil
}

func scanPricingRule(row rowScanner) (*rules.PricingRule, error) {
	var (
		rule     rules.PricingRule
		ruleType string
		cfg      []byte
		ids      pq.Int64Array
		until    sql.NullTime
	)
	if err := row.Scan(&rule.RuleID, &ruleType, &rule.Priority, &cfg, &ids,
		&rule.IsActive, &rule.ValidFrom, &until); err != nil {
		return nil, err
	}
	rt, err := rules.ParseRuleType(ruleType)
	if err != nil {
		return nil, err
	}
	rule.RuleType = rt
	rule.RuleConfig = json.RawMessage(cfg)
	if ids != nil {
		rule.CoffeeIDs = make([]int, len(ids))
		for i, v := range ids {
			rule.CoffeeIDs[i] = int(v)
		}
	}
	if until.Valid {
		t := until.Time
		rule.ValidUntil = &t
	}
	return &rule, nil
}

func coffeeIDsArray(ids []int) any {
	if ids == nil {
		return nil
	}
	arr := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		arr[i] = int64(id)
	}
	return arr
}

// UpdateLoyaltyConfig rewrites the singleton loyalty configuration.
func (r *RulesAdminRepo) UpdateLoyaltyConfig(ctx context.Context, pointsPerDollar decimal.Decimal, bonusMultipliers map[int]decimal.Decimal) (*rules.LoyaltyConfig, error) {
	raw, err := json.Marshal(bonusMultipliers)
	if err != nil {
		return nil, fmt.Errorf("encode bonus multipliers: %w", err)
	}
	var (
		cfg     rules.LoyaltyConfig
		rawBack []byte
	)
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO loyalty_config (config_id, points_per_dollar, bonus_multipliers, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (config_id)
		DO UPDATE SET points_per_dollar = $1, bonus_multipliers = $2, updated_at = NOW()
		RETURNING config_id, points_per_dollar, bonus_multipliers, updated_at`,
		pointsPerDollar, string(raw),
	).Scan(&cfg.ConfigID, &cfg.PointsPerDollar, &rawBack, &cfg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update loyalty config: %w", err)
	}
	cfg.BonusMultipliers = map[int]decimal.Decimal{}
	if len(rawBack) > 0 {
		if err := json.Unmarshal(rawBack, &cfg.BonusMultipliers); err != nil {
			return nil, fmt.Errorf("decode bonus multipliers: %w", err)
		}
	}
	return &cfg, nil
}

// UpsertPrepTime writes one coffee's preparation time configuration.
func (r *RulesAdminRepo) UpsertPrepTime(ctx context.Context, coffeeID, baseMinutes, perAdditionalItem int) (*rules.CoffeeBaseTime, error) {
	var cfg rules.CoffeeBaseTime
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO prep_time_config (coffee_id, base_minutes, per_additional_item, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (coffee_id)
		DO UPDATE SET base_minutes = $2, per_additional_item = $3, updated_at = NOW()
		RETURNING coffee_id, base_minutes, per_additional_item, updated_at`,
		coffeeID, baseMinutes, perAdditionalItem,
	).Scan(&cfg.CoffeeID, &cfg.BaseMinutes, &cfg.PerAdditionalItem, &cfg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert prep time config: %w", err)
	}
	return &cfg, nil
}

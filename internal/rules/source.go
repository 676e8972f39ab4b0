package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// SQLSource is the Postgres implementation of Source and of the
// narrow storage interfaces the individual engines consume.
type SQLSource struct {
	db *sql.DB
}

func NewSQLSource(db *sql.DB) *SQLSource { return &SQLSource{db: db} }

func (s *SQLSource) AvailabilityRules(ctx context.Context) (map[int]CoffeeAvailability, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT coffee_id, status, reason, available_from, available_until, updated_at
		FROM coffee_availability`)
	if err != nil {
		return nil, dbError(err, "load availability rules")
	}
	defer rows.Close()

	out := map[int]CoffeeAvailability{}
	for rows.Next() {
		var (
			rec    CoffeeAvailability
			status string
			reason sql.NullString
			from   sql.NullTime
			until  sql.NullTime
		)
		if err := rows.Scan(&rec.CoffeeID, &status, &reason, &from, &until, &rec.UpdatedAt); err != nil {
			return nil, dbError(err, "scan coffee_availability row")
		}
		st, err := ParseAvailabilityStatus(status)
		if err != nil {
			return nil, dbError(err, "coffee_availability row for coffee %d", rec.CoffeeID)
		}
		rec.Status = st
		rec.Reason = reason.String
		if from.Valid {
			t := from.Time
			rec.AvailableFrom = &t
		}
		if until.Valid {
			t := until.Time
			rec.AvailableUntil = &t
		}
		out[rec.CoffeeID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "iterate coffee_availability rows")
	}
	return out, nil
}

func (s *SQLSource) PricingRules(ctx context.Context) ([]PricingRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, rule_type, priority, rule_config, coffee_ids, is_active, valid_from, valid_until
		FROM pricing_rules
		WHERE is_active = true
		ORDER BY priority DESC`)
	if err != nil {
		return nil, dbError(err, "load pricing rules")
	}
	defer rows.Close()

	var out []PricingRule
	for rows.Next() {
		var (
			r        PricingRule
			ruleType string
			cfg      []byte
			ids      pq.Int64Array
			until    sql.NullTime
		)
		if err := rows.Scan(&r.RuleID, &ruleType, &r.Priority, &cfg, &ids, &r.IsActive, &r.ValidFrom, &until); err != nil {
			return nil, dbError(err, "scan pricing_rules row")
		}
		rt, err := ParseRuleType(ruleType)
		if err != nil {
			return nil, dbError(err, "pricing rule %s", r.RuleID)
		}
		r.RuleType = rt
		r.RuleConfig = json.RawMessage(cfg)
		if ids != nil {
			r.CoffeeIDs = make([]int, len(ids))
			for i, v := range ids {
				r.CoffeeIDs[i] = int(v)
			}
		}
		if until.Valid {
			t := until.Time
			r.ValidUntil = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "iterate pricing_rules rows")
	}
	return out, nil
}

func (s *SQLSource) PrepTimeConfig(ctx context.Context) (map[int]CoffeeBaseTime, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT coffee_id, base_minutes, per_additional_item, updated_at
		FROM prep_time_config`)
	if err != nil {
		return nil, dbError(err, "load prep time config")
	}
	defer rows.Close()

	out := map[int]CoffeeBaseTime{}
	for rows.Next() {
		var c CoffeeBaseTime
		if err := rows.Scan(&c.CoffeeID, &c.BaseMinutes, &c.PerAdditionalItem, &c.UpdatedAt); err != nil {
			return nil, dbError(err, "scan prep_time_config row")
		}
		out[c.CoffeeID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "iterate prep_time_config rows")
	}
	return out, nil
}

func (s *SQLSource) LoyaltyConfig(ctx context.Context) (*LoyaltyConfig, error) {
	var (
		cfg LoyaltyConfig
		raw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT config_id, points_per_dollar, bonus_multipliers, updated_at
		FROM loyalty_config
		WHERE config_id = 1`).Scan(&cfg.ConfigID, &cfg.PointsPerDollar, &raw, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(KindConfigurationNotFound, "loyalty_config")
	}
	if err != nil {
		return nil, dbError(err, "load loyalty config")
	}
	cfg.BonusMultipliers = map[int]decimal.Decimal{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg.BonusMultipliers); err != nil {
			return nil, newError(KindInvalidConfiguration, "Invalid bonus_multipliers JSON: %v", err)
		}
	}
	return &cfg, nil
}

// UpsertAvailability writes one coffee's availability row, replacing
// any existing one.
func (s *SQLSource) UpsertAvailability(ctx context.Context, coffeeID int, status AvailabilityStatus, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coffee_availability (coffee_id, status, reason, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (coffee_id)
		DO UPDATE SET status = $2, reason = $3, updated_at = NOW()`,
		coffeeID, string(status), nullString(reason))
	if err != nil {
		return dbError(err, "update availability for coffee %d", coffeeID)
	}
	return nil
}

// QueueStatus returns the summed prep minutes of pending and
// preparing orders and how many of them there are.
func (s *SQLSource) QueueStatus(ctx context.Context) (delayMinutes, position int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(estimated_prep_minutes), 0)
		FROM orders
		WHERE status IN ('pending', 'preparing')`).Scan(&position, &delayMinutes)
	if err != nil {
		return 0, 0, dbError(err, "load order queue")
	}
	return delayMinutes, position, nil
}

// AwardPoints adds points to the customer's balance and lifetime
// total, creating the row when absent.
func (s *SQLSource) AwardPoints(ctx context.Context, customerID, points int) (CustomerLoyalty, error) {
	var cl CustomerLoyalty
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customer_loyalty (customer_id, points_balance, lifetime_points)
		VALUES ($1, $2, $2)
		ON CONFLICT (customer_id)
		DO UPDATE SET
			points_balance = customer_loyalty.points_balance + $2,
			lifetime_points = customer_loyalty.lifetime_points + $2,
			updated_at = NOW()
		RETURNING customer_id, points_balance, lifetime_points`,
		customerID, points).Scan(&cl.CustomerID, &cl.PointsBalance, &cl.LifetimePoints)
	if err != nil {
		return CustomerLoyalty{}, dbError(err, "award points to customer %d", customerID)
	}
	return cl, nil
}

// PointsBalance returns the customer's current balance, 0 when the
// customer has no loyalty row yet.
func (s *SQLSource) PointsBalance(ctx context.Context, customerID int) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `
		SELECT points_balance FROM customer_loyalty WHERE customer_id = $1`,
		customerID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, dbError(err, "load points balance for customer %d", customerID)
	}
	return balance, nil
}

func (s *SQLSource) InsertAuditRecord(ctx context.Context, rec AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_audit_log (order_id, rule_type, rule_id, rule_data, effect)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.OrderID, rec.RuleType, rec.RuleID, string(rec.RuleData), rec.Effect)
	if err != nil {
		return dbError(err, "insert audit record for order %s", rec.OrderID)
	}
	return nil
}

func (s *SQLSource) AuditRecordsByOrder(ctx context.Context, orderID uuid.UUID) ([]AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_id, order_id, rule_type, rule_id, rule_data, effect, created_at
		FROM rule_audit_log
		WHERE order_id = $1
		ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, dbError(err, "load audit records for order %s", orderID)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var (
			rec    AuditRecord
			ruleID uuid.NullUUID
			data   []byte
		)
		if err := rows.Scan(&rec.AuditID, &rec.OrderID, &rec.RuleType, &ruleID, &data, &rec.Effect, &rec.CreatedAt); err != nil {
			return nil, dbError(err, "scan rule_audit_log row")
		}
		if ruleID.Valid {
			id := ruleID.UUID
			rec.RuleID = &id
		}
		rec.RuleData = json.RawMessage(data)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "iterate rule_audit_log rows")
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

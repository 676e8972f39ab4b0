package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/perkhub/coffee-shop-backend/internal/repository"
	"github.com/perkhub/coffee-shop-backend/internal/rules"
)

// RulesHandler is the admin surface over the business rules engine:
// availability overrides, pricing rule CRUD, loyalty and prep-time
// configuration, metrics and the audit trail.
type RulesHandler struct {
	engine *rules.Engine
	admin  *repository.RulesAdminRepo
}

func NewRulesHandler(engine *rules.Engine, admin *repository.RulesAdminRepo) *RulesHandler {
	return &RulesHandler{engine: engine, admin: admin}
}

type updateAvailabilityRequest struct {
	CoffeeID int    `json:"coffee_id"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
}

// UpdateAvailability handles POST /api/business-rules/availability.
func (h *RulesHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	var req updateAvailabilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CoffeeID < 1 {
		writeMessage(w, http.StatusBadRequest, "coffee_id must be a positive integer")
		return
	}
	status, err := rules.ParseAvailabilityStatus(req.Status)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.engine.Availability().UpdateAvailability(r.Context(), req.CoffeeID, status, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coffee_id": req.CoffeeID,
		"status":    status,
	})
}

// GetAvailability handles GET /api/business-rules/availability/{coffeeID},
// returning the effective availability with any seasonal-window
// override applied.
func (h *RulesHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "coffeeID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	availability, err := h.engine.Availability().CheckCoffeeAvailability(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

type pricingRuleRequest struct {
	RuleType      string            `json:"rule_type"`
	Description   string            `json:"description"`
	DiscountType  string            `json:"discount_type"`
	DiscountValue decimal.Decimal   `json:"discount_value"`
	Priority      int               `json:"priority"`
	ValidFrom     *time.Time        `json:"valid_from"`
	ValidUntil    *time.Time        `json:"valid_until"`
	CoffeeIDs     []int             `json:"coffee_ids"`
	TimeRanges    []rules.TimeRange `json:"time_ranges"`
	MinQuantity   int               `json:"min_quantity"`
}

// buildRule assembles the type-tagged rule config and validates it
// with the same checks the engine's loader applies.
func (req *pricingRuleRequest) buildRule() (*rules.PricingRule, error) {
	ruleType, err := rules.ParseRuleType(req.RuleType)
	if err != nil {
		return nil, err
	}
	discountType, err := rules.ParseDiscountType(req.DiscountType)
	if err != nil {
		return nil, err
	}

	var config any
	switch ruleType {
	case rules.TimeBased:
		config = rules.TimeBasedRuleConfig{
			TimeRanges:    req.TimeRanges,
			DiscountType:  discountType,
			DiscountValue: req.DiscountValue,
			Description:   req.Description,
		}
	case rules.QuantityBased:
		config = rules.QuantityBasedRuleConfig{
			MinQuantity:   req.MinQuantity,
			DiscountType:  discountType,
			DiscountValue: req.DiscountValue,
			Description:   req.Description,
		}
	case rules.Promotional:
		config = rules.PromotionalRuleConfig{
			DiscountType:  discountType,
			DiscountValue: req.DiscountValue,
			Description:   req.Description,
		}
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}

	validFrom := time.Now()
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	rule := &rules.PricingRule{
		RuleType:   ruleType,
		Priority:   req.Priority,
		RuleConfig: raw,
		CoffeeIDs:  req.CoffeeIDs,
		IsActive:   true,
		ValidFrom:  validFrom,
		ValidUntil: req.ValidUntil,
	}
	if err := rules.ValidatePricingRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// CreatePricingRule handles POST /api/business-rules/pricing.
func (h *RulesHandler) CreatePricingRule(w http.ResponseWriter, r *http.Request) {
	var req pricingRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := req.buildRule()
	if err != nil {
		if _, ok := rules.KindOf(err); ok {
			writeError(w, err)
		} else {
			writeMessage(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	created, err := h.admin.InsertPricingRule(r.Context(), rule)
	if err != nil {
		writeError(w, err)
		return
	}
	h.engine.Store().Invalidate(rules.CategoryPricing)
	writeJSON(w, http.StatusCreated, created)
}

type updatePricingRuleRequest struct {
	Priority   *int       `json:"priority"`
	IsActive   *bool      `json:"is_active"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
	CoffeeIDs  *[]int     `json:"coffee_ids"`
}

// UpdatePricingRule handles PUT /api/business-rules/pricing/{ruleID}:
// scheduling, targeting and activation changes. The config payload is
// immutable; replace the rule to change its discount.
func (h *RulesHandler) UpdatePricingRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := ruleIDParam(w, r)
	if !ok {
		return
	}
	var req updatePricingRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.admin.UpdatePricingRule(r.Context(), ruleID, repository.PricingRuleUpdate{
		Priority:   req.Priority,
		IsActive:   req.IsActive,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		CoffeeIDs:  req.CoffeeIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.engine.Store().Invalidate(rules.CategoryPricing)
	writeJSON(w, http.StatusOK, updated)
}

// DeletePricingRule handles DELETE /api/business-rules/pricing/{ruleID}.
func (h *RulesHandler) DeletePricingRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := ruleIDParam(w, r)
	if !ok {
		return
	}
	if err := h.admin.DeletePricingRule(r.Context(), ruleID); err != nil {
		writeError(w, err)
		return
	}
	h.engine.Store().Invalidate(rules.CategoryPricing)
	w.WriteHeader(http.StatusNoContent)
}

// ListPricingRules handles GET /api/business-rules/pricing, listing
// every rule including inactive ones.
func (h *RulesHandler) ListPricingRules(w http.ResponseWriter, r *http.Request) {
	all, err := h.admin.AllPricingRules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": all})
}

// GetLoyaltyConfig handles GET /api/business-rules/loyalty-config.
func (h *RulesHandler) GetLoyaltyConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.engine.Store().LoyaltyConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type loyaltyConfigRequest struct {
	PointsPerDollar  decimal.Decimal         `json:"points_per_dollar"`
	BonusMultipliers map[int]decimal.Decimal `json:"bonus_multipliers"`
}

// UpdateLoyaltyConfig handles PUT /api/business-rules/loyalty-config.
func (h *RulesHandler) UpdateLoyaltyConfig(w http.ResponseWriter, r *http.Request) {
	var req loyaltyConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	candidate := rules.LoyaltyConfig{
		PointsPerDollar:  req.PointsPerDollar,
		BonusMultipliers: req.BonusMultipliers,
	}
	if err := rules.ValidateLoyaltyConfig(&candidate); err != nil {
		writeError(w, err)
		return
	}
	cfg, err := h.admin.UpdateLoyaltyConfig(r.Context(), req.PointsPerDollar, req.BonusMultipliers)
	if err != nil {
		writeError(w, err)
		return
	}
	h.engine.Store().Invalidate(rules.CategoryLoyalty)
	writeJSON(w, http.StatusOK, cfg)
}

type prepTimeRequest struct {
	BaseMinutes       int `json:"base_minutes"`
	PerAdditionalItem int `json:"per_additional_item"`
}

// UpsertPrepTime handles PUT /api/business-rules/prep-time/{coffeeID}.
func (h *RulesHandler) UpsertPrepTime(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "coffeeID")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	var req prepTimeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := rules.ValidatePrepTime(id, req.BaseMinutes, req.PerAdditionalItem); err != nil {
		writeError(w, err)
		return
	}
	cfg, err := h.admin.UpsertPrepTime(r.Context(), id, req.BaseMinutes, req.PerAdditionalItem)
	if err != nil {
		writeError(w, err)
		return
	}
	h.engine.Store().Invalidate(rules.CategoryPrepTime)
	writeJSON(w, http.StatusOK, cfg)
}

// Metrics handles GET /api/business-rules/metrics.
func (h *RulesHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Metrics().Snapshot())
}

// AuditTrail handles GET /api/business-rules/audit/{orderID}.
func (h *RulesHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "order id must be a UUID")
		return
	}
	records, err := h.engine.Audit().Records(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func ruleIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "rule id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

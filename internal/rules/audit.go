package rules

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditSink persists audit records. SQLSource implements it.
type AuditSink interface {
	InsertAuditRecord(ctx context.Context, rec AuditRecord) error
	AuditRecordsByOrder(ctx context.Context, orderID uuid.UUID) ([]AuditRecord, error)
}

// AuditRecord is one entry in the rule audit trail.
type AuditRecord struct {
	AuditID   uuid.UUID       `json:"audit_id"`
	OrderID   uuid.UUID       `json:"order_id"`
	RuleType  string          `json:"rule_type"`
	RuleID    *uuid.UUID      `json:"rule_id,omitempty"`
	RuleData  json.RawMessage `json:"rule_data"`
	Effect    string          `json:"effect"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditLogger records rule applications against orders. Failures are
// logged and never propagated so audit trouble cannot block an order.
type AuditLogger struct {
	sink AuditSink
}

func NewAuditLogger(sink AuditSink) *AuditLogger { return &AuditLogger{sink: sink} }

// LogAvailabilityCheck records the outcome of an order validation.
func (a *AuditLogger) LogAvailabilityCheck(ctx context.Context, orderID uuid.UUID, ruleData any, effect string) {
	a.log(ctx, orderID, "availability", nil, ruleData, effect, "availability check")
}

// LogPricingApplication records one applied pricing rule, or the
// pricing summary when ruleID is nil.
func (a *AuditLogger) LogPricingApplication(ctx context.Context, orderID uuid.UUID, ruleID *uuid.UUID, ruleData any, effect string) {
	a.log(ctx, orderID, "pricing", ruleID, ruleData, effect, "pricing application")
}

// LogLoyaltyAward records a loyalty points award.
func (a *AuditLogger) LogLoyaltyAward(ctx context.Context, orderID uuid.UUID, ruleData any, effect string) {
	a.log(ctx, orderID, "loyalty", nil, ruleData, effect, "loyalty award")
}

func (a *AuditLogger) log(ctx context.Context, orderID uuid.UUID, ruleType string, ruleID *uuid.UUID, ruleData any, effect, what string) {
	data, err := json.Marshal(ruleData)
	if err != nil {
		slog.Error("failed to log "+what, "order_id", orderID, "err", err)
		return
	}
	rec := AuditRecord{
		OrderID:  orderID,
		RuleType: ruleType,
		RuleID:   ruleID,
		RuleData: data,
		Effect:   effect,
	}
	if err := a.sink.InsertAuditRecord(ctx, rec); err != nil {
		slog.Error("failed to log "+what, "order_id", orderID, "err", err)
	}
}

// Records returns the audit trail for one order, oldest first.
func (a *AuditLogger) Records(ctx context.Context, orderID uuid.UUID) ([]AuditRecord, error) {
	return a.sink.AuditRecordsByOrder(ctx, orderID)
}

package deals

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/groupbuy-settlement/internal/settlement"
	"github.com/angelmondragon/groupbuy-settlement/pkg/db/models"
	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
)

// Ledger persists the latest settlement result per (deal, buyer).
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) ListResults(ctx context.Context, dealID uuid.UUID) ([]settlement.Result, error) {
	var rows []models.SettlementItem
	if err := l.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list settlement items: %w", err)
	}
	out := make([]settlement.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, resultFromItem(row))
	}
	return out, nil
}

// RecordResult upserts the result and counts the attempt.
func (l *Ledger) RecordResult(ctx context.Context, dealID uuid.UUID, res settlement.Result) error {
	row := itemFromResult(dealID, res)
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "deal_id"}, {Name: "buyer_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":       row.Quantity,
			"order_ref":      row.OrderRef,
			"payment_ref":    row.PaymentRef,
			"outcome":        row.Outcome,
			"failure_kind":   row.FailureKind,
			"failure_stage":  row.FailureStage,
			"failure_reason": row.FailureReason,
			"attempts":       gorm.Expr("settlement_items.attempts + 1"),
			"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("record settlement item: %w", err)
	}
	return nil
}

func itemFromResult(dealID uuid.UUID, res settlement.Result) models.SettlementItem {
	item := models.SettlementItem{
		DealID:     dealID,
		BuyerID:    res.BuyerID,
		Quantity:   res.Quantity,
		OrderRef:   res.OrderRef,
		PaymentRef: res.PaymentRef,
		Outcome:    res.Outcome,
		Attempts:   1,
	}
	if res.Outcome == enums.SettlementOutcomeFailed {
		kind, stage, reason := res.FailureKind, res.FailedStage, res.FailureReason
		item.FailureKind = &kind
		item.FailureStage = &stage
		item.FailureReason = &reason
	}
	return item
}

func resultFromItem(item models.SettlementItem) settlement.Result {
	res := settlement.Result{
		BuyerID:    item.BuyerID,
		Quantity:   item.Quantity,
		OrderRef:   item.OrderRef,
		PaymentRef: item.PaymentRef,
		Outcome:    item.Outcome,
	}
	if item.FailureKind != nil {
		res.FailureKind = *item.FailureKind
	}
	if item.FailureStage != nil {
		res.FailedStage = *item.FailureStage
	}
	if item.FailureReason != nil {
		res.FailureReason = *item.FailureReason
	}
	return res
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
)

// SettlementItem records the fan-out result for one buyer of a completed deal.
type SettlementItem struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	DealID        uuid.UUID               `gorm:"column:deal_id;type:uuid;not null;uniqueIndex:settlement_items_deal_buyer_key"`
	BuyerID       uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:settlement_items_deal_buyer_key"`
	Quantity      int                     `gorm:"column:quantity;not null"`
	OrderRef      *string                 `gorm:"column:order_ref"`
	PaymentRef    *string                 `gorm:"column:payment_ref"`
	Outcome       enums.SettlementOutcome `gorm:"column:outcome;type:text;not null"`
	FailureKind   *enums.FailureKind      `gorm:"column:failure_kind;type:text"`
	FailureStage  *enums.FailureStage     `gorm:"column:failure_stage;type:text"`
	FailureReason *string                 `gorm:"column:failure_reason"`
	Attempts      int                     `gorm:"column:attempts;not null;default:1"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (SettlementItem) TableName() string { return "settlement_items" }

func (i *SettlementItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
)

// GroupBuyOrder is the purchase order issued to one buyer of a completed deal.
type GroupBuyOrder struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	IdempotencyKey string         `gorm:"column:idempotency_key;not null;uniqueIndex:group_buy_orders_idempotency_key_key"`
	DealID         uuid.UUID      `gorm:"column:deal_id;type:uuid;not null"`
	BuyerID        uuid.UUID      `gorm:"column:buyer_id;type:uuid;not null"`
	SellerRef      uuid.UUID      `gorm:"column:seller_ref;type:uuid;not null"`
	ProductRef     uuid.UUID      `gorm:"column:product_ref;type:uuid;not null"`
	Quantity       int            `gorm:"column:quantity;not null"`
	UnitPriceCents int64          `gorm:"column:unit_price_cents;not null"`
	TotalCents     int64          `gorm:"column:total_cents;not null"`
	Currency       enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (GroupBuyOrder) TableName() string { return "group_buy_orders" }

func (o *GroupBuyOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
)

// GroupBuyDeal is a collective-purchase offer with a quantity threshold.
type GroupBuyDeal struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductRef         uuid.UUID        `gorm:"column:product_ref;type:uuid;not null"`
	SellerRef          uuid.UUID        `gorm:"column:seller_ref;type:uuid;not null"`
	UnitPriceCents     int64            `gorm:"column:unit_price_cents;not null"`
	DiscountPercentage decimal.Decimal  `gorm:"column:discount_percentage;type:numeric(5,2);not null"`
	MinQuantity        int              `gorm:"column:min_quantity;not null"`
	Currency           enums.Currency   `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status             enums.DealStatus `gorm:"column:status;type:group_buy_deal_status;not null;default:'active'"`
	ExpiresAt          time.Time        `gorm:"column:expires_at;not null"`
	SettledAt          *time.Time       `gorm:"column:settled_at"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (GroupBuyDeal) TableName() string { return "group_buy_deals" }

func (d *GroupBuyDeal) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

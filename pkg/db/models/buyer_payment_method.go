package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BuyerPaymentMethod mirrors a Square card on file for a buyer.
type BuyerPaymentMethod struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID          uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	SquareCustomerID string    `gorm:"column:square_customer_id;not null"`
	SquareCardID     string    `gorm:"column:square_card_id;not null;unique"`
	CardBrand        *string   `gorm:"column:card_brand"`
	CardLast4        *string   `gorm:"column:card_last4"`
	IsDefault        bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (BuyerPaymentMethod) TableName() string { return "buyer_payment_methods" }

func (m *BuyerPaymentMethod) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

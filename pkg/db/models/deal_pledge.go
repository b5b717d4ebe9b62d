package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DealPledge is one buyer's quantity commitment against a deal.
type DealPledge struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DealID    uuid.UUID `gorm:"column:deal_id;type:uuid;not null;uniqueIndex:deal_pledges_deal_buyer_key"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:deal_pledges_deal_buyer_key"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DealPledge) TableName() string { return "deal_pledges" }

func (p *DealPledge) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

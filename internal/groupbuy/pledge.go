package groupbuy

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-settlement/pkg/db/models"
)

// Pledge is one participant's commitment to buy a quantity under a deal.
type Pledge struct {
	ID        uuid.UUID
	DealID    uuid.UUID
	BuyerID   uuid.UUID
	Quantity  int
	CreatedAt time.Time
}

// PledgeParams are the inputs accepted by NewPledge.
type PledgeParams struct {
	ID        uuid.UUID
	DealID    uuid.UUID `validate:"required"`
	BuyerID   uuid.UUID `validate:"required"`
	Quantity  int       `validate:"gt=0"`
	CreatedAt time.Time
}

// NewPledge validates params and returns a Pledge, assigning an id when absent.
func NewPledge(params PledgeParams) (Pledge, error) {
	if err := validate.Struct(params); err != nil {
		return Pledge{}, validationError(err)
	}
	id := params.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return Pledge{
		ID:        id,
		DealID:    params.DealID,
		BuyerID:   params.BuyerID,
		Quantity:  params.Quantity,
		CreatedAt: params.CreatedAt,
	}, nil
}

// PledgeFromModel converts a stored pledge row, re-validating it.
func PledgeFromModel(m models.DealPledge) (Pledge, error) {
	return NewPledge(PledgeParams{
		ID:        m.ID,
		DealID:    m.DealID,
		BuyerID:   m.BuyerID,
		Quantity:  m.Quantity,
		CreatedAt: m.CreatedAt,
	})
}

// ToModel maps the pledge onto its persisted row.
func (p Pledge) ToModel() models.DealPledge {
	return models.DealPledge{
		ID:        p.ID,
		DealID:    p.DealID,
		BuyerID:   p.BuyerID,
		Quantity:  p.Quantity,
		CreatedAt: p.CreatedAt,
	}
}

// TotalQuantity sums pledged quantities. An empty list totals zero.
func TotalQuantity(pledges []Pledge) int {
	total := 0
	for _, p := range pledges {
		total += p.Quantity
	}
	return total
}

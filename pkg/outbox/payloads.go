package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
)

// DealSettledPayload is the data of group_buy_deal_completed and
// group_buy_deal_cancelled events.
type DealSettledPayload struct {
	DealID     uuid.UUID        `json:"dealId"`
	ProductRef uuid.UUID        `json:"productRef"`
	SellerRef  uuid.UUID        `json:"sellerRef"`
	Status     enums.DealStatus `json:"status"`
	SettledAt  time.Time        `json:"settledAt"`
}

package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-settlement/internal/groupbuy"
	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
)

// DealStore is the durable record of deals and their pledges.
// GetDeal returns groupbuy.ErrDealNotFound for unknown ids.
type DealStore interface {
	GetDeal(ctx context.Context, id uuid.UUID) (*groupbuy.Deal, error)
	ListPledges(ctx context.Context, dealID uuid.UUID) ([]groupbuy.Pledge, error)
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next enums.DealStatus) (bool, error)
}

// OrderRequest describes the purchase order issued to one participant.
type OrderRequest struct {
	IdempotencyKey string
	DealID         uuid.UUID
	BuyerID        uuid.UUID
	SellerRef      uuid.UUID
	ProductRef     uuid.UUID
	Quantity       int
	UnitPriceCents int64
	Currency       enums.Currency
}

// OrderIssuer creates purchase orders. Calls repeated with the same
// idempotency key must return the same order reference.
type OrderIssuer interface {
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
}

// PaymentRequest describes the authorization hold for one participant's order.
type PaymentRequest struct {
	OrderRef       string
	BuyerID        uuid.UUID
	AmountCents    int64
	Currency       enums.Currency
	IdempotencyKey string
}

// PaymentIssuer places authorization holds. Calls repeated with the same
// idempotency key must return the same payment reference.
type PaymentIssuer interface {
	Authorize(ctx context.Context, req PaymentRequest) (string, error)
}

// Ledger keeps the latest fan-out result per (deal, buyer).
type Ledger interface {
	ListResults(ctx context.Context, dealID uuid.UUID) ([]Result, error)
	RecordResult(ctx context.Context, dealID uuid.UUID, result Result) error
}

// Lease is an advisory hold on a deal for the duration of one attempt.
type Lease interface {
	Release(ctx context.Context) error
}

// Claimer hands out settlement leases. ok is false when another attempt
// holds the lease.
type Claimer interface {
	Claim(ctx context.Context, dealID uuid.UUID) (lease Lease, ok bool, err error)
}

// Recorder receives settlement metrics.
type Recorder interface {
	ObserveAttempt(operation, disposition string, d time.Duration)
	ObserveParticipant(outcome, failureKind string)
}

package issuers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-settlement/internal/settlement"
	"github.com/angelmondragon/groupbuy-settlement/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-settlement/pkg/errors"
	"github.com/angelmondragon/groupbuy-settlement/pkg/square"
)

type paymentAuthorizer interface {
	AuthorizePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// SquareAuthorizer places Square authorization holds against the buyer's
// default card on file.
type SquareAuthorizer struct {
	db     *gorm.DB
	square paymentAuthorizer
}

func NewSquareAuthorizer(db *gorm.DB, client paymentAuthorizer) (*SquareAuthorizer, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareAuthorizer{db: db, square: client}, nil
}

func (a *SquareAuthorizer) Authorize(ctx context.Context, req settlement.PaymentRequest) (string, error) {
	if req.AmountCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "authorization amount must be positive")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}

	card, err := a.defaultCard(ctx, req.BuyerID)
	if err != nil {
		return "", err
	}

	payment, err := a.square.AuthorizePayment(ctx, square.PaymentCreateParams{
		AmountCents:    req.AmountCents,
		Currency:       string(req.Currency),
		CustomerID:     card.SquareCustomerID,
		SourceID:       card.SquareCardID,
		IdempotencyKey: req.IdempotencyKey,
		ReferenceID:    req.OrderRef,
		Note:           "group buy settlement",
	})
	if err != nil {
		return "", err
	}
	id := ""
	if payment != nil && payment.GetID() != nil {
		id = *payment.GetID()
	}
	if strings.TrimSpace(id) == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "square returned a payment without id")
	}
	return id, nil
}

func (a *SquareAuthorizer) defaultCard(ctx context.Context, buyerID uuid.UUID) (*models.BuyerPaymentMethod, error) {
	var card models.BuyerPaymentMethod
	err := a.db.WithContext(ctx).
		Where("buyer_id = ? AND is_default = ?", buyerID, true).
		Order("updated_at DESC").
		First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer has no default payment method")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default payment method")
	}
	return &card, nil
}

package issuers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-settlement/internal/settlement"
	dbpkg "github.com/angelmondragon/groupbuy-settlement/pkg/db"
	"github.com/angelmondragon/groupbuy-settlement/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-settlement/pkg/errors"
)

// OrderIssuer writes group-buy purchase orders to the orders table. The
// idempotency key is unique there, so a replayed request returns the order
// the first call created.
type OrderIssuer struct {
	db *gorm.DB
}

func NewOrderIssuer(db *gorm.DB) (*OrderIssuer, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &OrderIssuer{db: db}, nil
}

func (i *OrderIssuer) CreateOrder(ctx context.Context, req settlement.OrderRequest) (string, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if req.Quantity <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order quantity must be positive")
	}
	if req.UnitPriceCents < 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	existing, err := i.findByKey(ctx, req.IdempotencyKey)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return replayed(existing, req)
	}

	row := models.GroupBuyOrder{
		IdempotencyKey: req.IdempotencyKey,
		DealID:         req.DealID,
		BuyerID:        req.BuyerID,
		SellerRef:      req.SellerRef,
		ProductRef:     req.ProductRef,
		Quantity:       req.Quantity,
		UnitPriceCents: req.UnitPriceCents,
		TotalCents:     req.UnitPriceCents * int64(req.Quantity),
		Currency:       req.Currency,
	}
	if err := i.db.WithContext(ctx).Create(&row).Error; err != nil {
		if !dbpkg.IsUniqueViolation(err, "") {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		// Lost the insert race to a concurrent call with the same key.
		existing, err := i.findByKey(ctx, req.IdempotencyKey)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return "", pkgerrors.New(pkgerrors.CodeConflict, "order conflicted but could not be reloaded")
		}
		return replayed(existing, req)
	}
	return row.ID.String(), nil
}

func (i *OrderIssuer) findByKey(ctx context.Context, key string) (*models.GroupBuyOrder, error) {
	var row models.GroupBuyOrder
	err := i.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by idempotency key")
	}
	return &row, nil
}

// replayed returns the stored order when req carries the same terms.
func replayed(row *models.GroupBuyOrder, req settlement.OrderRequest) (string, error) {
	if row.DealID != req.DealID || row.BuyerID != req.BuyerID {
		return "", pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused for a different order")
	}
	if row.Quantity != req.Quantity || row.UnitPriceCents != req.UnitPriceCents || row.Currency != req.Currency {
		return "", pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different order terms").
			WithDetails(map[string]any{
				"stored_quantity":         row.Quantity,
				"stored_unit_price_cents": row.UnitPriceCents,
			})
	}
	return row.ID.String(), nil
}

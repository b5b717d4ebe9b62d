package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-settlement/api/responses"
	"github.com/angelmondragon/groupbuy-settlement/api/validators"
	"github.com/angelmondragon/groupbuy-settlement/internal/groupbuy"
	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-settlement/pkg/errors"
	"github.com/angelmondragon/groupbuy-settlement/pkg/logger"
)

// DealStore is the subset of the deals repository the admin endpoints use.
type DealStore interface {
	GetDeal(ctx context.Context, id uuid.UUID) (*groupbuy.Deal, error)
	ListPledges(ctx context.Context, dealID uuid.UUID) ([]groupbuy.Pledge, error)
	CreateDeal(ctx context.Context, deal groupbuy.Deal) error
	CreatePledge(ctx context.Context, pledge groupbuy.Pledge) error
}

type createDealRequest struct {
	ProductRef         string    `json:"product_ref" validate:"required,uuid"`
	SellerRef          string    `json:"seller_ref" validate:"required,uuid"`
	UnitPriceCents     int64     `json:"unit_price_cents" validate:"gt=0"`
	DiscountPercentage string    `json:"discount_percentage" validate:"required,numeric"`
	MinQuantity        int       `json:"min_quantity" validate:"gt=0"`
	ExpiresAt          time.Time `json:"expires_at" validate:"required"`
	Currency           string    `json:"currency" validate:"omitempty,len=3"`
}

type createPledgeRequest struct {
	BuyerID  string `json:"buyer_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type dealResponse struct {
	ID                 uuid.UUID        `json:"id"`
	ProductRef         uuid.UUID        `json:"product_ref"`
	SellerRef          uuid.UUID        `json:"seller_ref"`
	UnitPriceCents     int64            `json:"unit_price_cents"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	MinQuantity        int              `json:"min_quantity"`
	ExpiresAt          time.Time        `json:"expires_at"`
	Currency           enums.Currency   `json:"currency"`
	Status             enums.DealStatus `json:"status"`
	SettledAt          *time.Time       `json:"settled_at,omitempty"`
	PledgedQuantity    *int             `json:"pledged_quantity,omitempty"`
	PledgeCount        *int             `json:"pledge_count,omitempty"`
}

type pledgeResponse struct {
	ID        uuid.UUID `json:"id"`
	DealID    uuid.UUID `json:"deal_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

func CreateDeal(store DealStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req createDealRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		pct, err := decimal.NewFromString(req.DiscountPercentage)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "discount_percentage must be a decimal"))
			return
		}

		deal, err := groupbuy.NewDeal(groupbuy.DealParams{
			ID:                 uuid.New(),
			ProductRef:         uuid.MustParse(req.ProductRef),
			SellerRef:          uuid.MustParse(req.SellerRef),
			UnitPriceCents:     req.UnitPriceCents,
			DiscountPercentage: pct,
			MinQuantity:        req.MinQuantity,
			ExpiresAt:          req.ExpiresAt.UTC(),
			Currency:           enums.Currency(req.Currency),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := store.CreateDeal(ctx, deal); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDealResponse(deal, nil))
	}
}

func GetDeal(store DealStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		dealID, err := validators.ParseUUIDParam(r, "dealID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		deal, err := store.GetDeal(ctx, dealID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pledges, err := store.ListPledges(ctx, dealID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if pledges == nil {
			pledges = []groupbuy.Pledge{}
		}
		responses.WriteSuccess(w, toDealResponse(*deal, pledges))
	}
}

func CreatePledge(store DealStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		dealID, err := validators.ParseUUIDParam(r, "dealID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req createPledgeRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		pledge, err := groupbuy.NewPledge(groupbuy.PledgeParams{
			DealID:    dealID,
			BuyerID:   uuid.MustParse(req.BuyerID),
			Quantity:  req.Quantity,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := store.CreatePledge(ctx, pledge); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, pledgeResponse{
			ID:        pledge.ID,
			DealID:    pledge.DealID,
			BuyerID:   pledge.BuyerID,
			Quantity:  pledge.Quantity,
			CreatedAt: pledge.CreatedAt,
		})
	}
}

// toDealResponse includes pledge totals only when pledges were loaded.
func toDealResponse(deal groupbuy.Deal, pledges []groupbuy.Pledge) dealResponse {
	resp := dealResponse{
		ID:                 deal.ID,
		ProductRef:         deal.ProductRef,
		SellerRef:          deal.SellerRef,
		UnitPriceCents:     deal.UnitPriceCents,
		DiscountPercentage: deal.DiscountPercentage,
		MinQuantity:        deal.MinQuantity,
		ExpiresAt:          deal.ExpiresAt,
		Currency:           deal.Currency,
		Status:             deal.Status,
		SettledAt:          deal.SettledAt,
	}
	if pledges != nil {
		total := groupbuy.TotalQuantity(pledges)
		count := len(pledges)
		resp.PledgedQuantity = &total
		resp.PledgeCount = &count
	}
	return resp
}

package groupbuy

import (
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-settlement/pkg/db/models"
	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-settlement/pkg/errors"
)

var (
	// ErrDealNotFound is returned by deal stores when no deal matches the id.
	ErrDealNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "deal not found")
	// ErrDealNotActive is returned when evaluating a deal that already settled.
	ErrDealNotActive = pkgerrors.New(pkgerrors.CodeStateConflict, "deal is not active")
)

var (
	validate     = validator.New()
	hundredPct   = decimal.NewFromInt(100)
	zeroDecimal  = decimal.Zero
	errBadPctMsg = "discount percentage must be between 0 and 100"
)

// Deal is a collective-purchase offer with a minimum quantity threshold.
type Deal struct {
	ID                 uuid.UUID
	ProductRef         uuid.UUID
	SellerRef          uuid.UUID
	UnitPriceCents     int64
	DiscountPercentage decimal.Decimal
	MinQuantity        int
	ExpiresAt          time.Time
	Currency           enums.Currency
	Status             enums.DealStatus
	SettledAt          *time.Time
}

// DealParams carries the inputs accepted by NewDeal.
type DealParams struct {
	ID                 uuid.UUID       `validate:"required"`
	ProductRef         uuid.UUID       `validate:"required"`
	SellerRef          uuid.UUID       `validate:"required"`
	UnitPriceCents     int64           `validate:"gt=0"`
	DiscountPercentage decimal.Decimal `validate:"-"`
	MinQuantity        int             `validate:"gt=0"`
	ExpiresAt          time.Time       `validate:"required"`
	Currency           enums.Currency
	Status             enums.DealStatus
	SettledAt          *time.Time
}

// NewDeal validates params and returns a Deal. Currency defaults to USD and
// status to active.
func NewDeal(params DealParams) (Deal, error) {
	if err := validate.Struct(params); err != nil {
		return Deal{}, validationError(err)
	}
	if params.DiscountPercentage.LessThan(zeroDecimal) || params.DiscountPercentage.GreaterThan(hundredPct) {
		return Deal{}, pkgerrors.New(pkgerrors.CodeValidation, errBadPctMsg).
			WithDetails(map[string]any{"discount_percentage": params.DiscountPercentage.String()})
	}

	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return Deal{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}

	status := params.Status
	if status == "" {
		status = enums.DealStatusActive
	}
	if !status.IsValid() {
		return Deal{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid deal status %q", status))
	}

	return Deal{
		ID:                 params.ID,
		ProductRef:         params.ProductRef,
		SellerRef:          params.SellerRef,
		UnitPriceCents:     params.UnitPriceCents,
		DiscountPercentage: params.DiscountPercentage,
		MinQuantity:        params.MinQuantity,
		ExpiresAt:          params.ExpiresAt,
		Currency:           currency,
		Status:             status,
		SettledAt:          params.SettledAt,
	}, nil
}

// IsActive reports whether the deal still accepts pledges and settlement.
func (d Deal) IsActive() bool {
	return d.Status == enums.DealStatusActive
}

// DealFromModel converts the persisted row, re-checking invariants.
func DealFromModel(m models.GroupBuyDeal) (Deal, error) {
	return NewDeal(DealParams{
		ID:                 m.ID,
		ProductRef:         m.ProductRef,
		SellerRef:          m.SellerRef,
		UnitPriceCents:     m.UnitPriceCents,
		DiscountPercentage: m.DiscountPercentage,
		MinQuantity:        m.MinQuantity,
		ExpiresAt:          m.ExpiresAt,
		Currency:           m.Currency,
		Status:             m.Status,
		SettledAt:          m.SettledAt,
	})
}

// ToModel converts the deal into its persisted form.
func (d Deal) ToModel() models.GroupBuyDeal {
	return models.GroupBuyDeal{
		ID:                 d.ID,
		ProductRef:         d.ProductRef,
		SellerRef:          d.SellerRef,
		UnitPriceCents:     d.UnitPriceCents,
		DiscountPercentage: d.DiscountPercentage,
		MinQuantity:        d.MinQuantity,
		Currency:           d.Currency,
		Status:             d.Status,
		ExpiresAt:          d.ExpiresAt,
		SettledAt:          d.SettledAt,
	}
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !stdErrors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid input")
	}
	details := make(map[string]string, len(fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
		fields = append(fields, fe.Field())
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid "+strings.Join(fields, ", ")).WithDetails(details)
}

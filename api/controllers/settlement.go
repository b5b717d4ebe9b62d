package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-settlement/api/responses"
	"github.com/angelmondragon/groupbuy-settlement/api/validators"
	"github.com/angelmondragon/groupbuy-settlement/internal/settlement"
	"github.com/angelmondragon/groupbuy-settlement/pkg/logger"
)

// Settler is the settlement surface exposed over HTTP.
type Settler interface {
	Settle(ctx context.Context, dealID uuid.UUID) (*settlement.Report, error)
	ResumeSettlement(ctx context.Context, dealID uuid.UUID) (*settlement.Report, error)
}

// SettleDeal runs settlement for the deal in the path. Every business outcome,
// including rejection and lost races, is a 200 carrying the report.
func SettleDeal(svc Settler, logg *logger.Logger) http.HandlerFunc {
	return settlementHandler(logg, func(ctx context.Context, id uuid.UUID) (*settlement.Report, error) {
		return svc.Settle(ctx, id)
	})
}

// ResumeSettlement retries transiently failed participants of a completed deal.
func ResumeSettlement(svc Settler, logg *logger.Logger) http.HandlerFunc {
	return settlementHandler(logg, func(ctx context.Context, id uuid.UUID) (*settlement.Report, error) {
		return svc.ResumeSettlement(ctx, id)
	})
}

func settlementHandler(logg *logger.Logger, run func(context.Context, uuid.UUID) (*settlement.Report, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		dealID, err := validators.ParseUUIDParam(r, "dealID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithDealID(ctx, dealID.String())
		}

		report, err := run(ctx, dealID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

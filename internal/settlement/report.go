package settlement

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
)

// Result is the fan-out outcome for one participant.
type Result struct {
	BuyerID       uuid.UUID               `json:"buyer_id"`
	Quantity      int                     `json:"quantity"`
	OrderRef      *string                 `json:"order_ref,omitempty"`
	PaymentRef    *string                 `json:"payment_ref,omitempty"`
	Outcome       enums.SettlementOutcome `json:"outcome"`
	FailureReason string                  `json:"failure_reason,omitempty"`
	FailureKind   enums.FailureKind       `json:"failure_kind,omitempty"`
	FailedStage   enums.FailureStage      `json:"failed_stage,omitempty"`
}

// Issued reports whether both the order and the payment hold exist.
func (r Result) Issued() bool {
	return r.Outcome == enums.SettlementOutcomeIssued
}

// Retryable reports whether resume should attempt this participant again.
func (r Result) Retryable() bool {
	return r.Outcome == enums.SettlementOutcomeFailed && r.FailureKind != enums.FailureKindPermanent
}

// Report is returned by every Settle and ResumeSettlement call that did not
// hit an infrastructure error.
type Report struct {
	DealID                   uuid.UUID                   `json:"deal_id"`
	Disposition              enums.SettlementDisposition `json:"disposition"`
	FinalStatus              enums.DealStatus            `json:"final_status,omitempty"`
	TotalQuantity            int                         `json:"total_quantity"`
	MinQuantity              int                         `json:"min_quantity"`
	DiscountedUnitPriceCents int64                       `json:"discounted_unit_price_cents,omitempty"`
	Results                  []Result                    `json:"results"`

	// ResumeRequired is set when the frozen pledge set could not be re-read
	// after finalization. Pledges missing from Results are issued by
	// ResumeSettlement, which treats participants without a ledger row as
	// pending.
	ResumeRequired bool `json:"resume_required,omitempty"`
}

func (r *Report) IssuedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Issued() {
			n++
		}
	}
	return n
}

func (r *Report) FailedCount() int {
	return len(r.Results) - r.IssuedCount()
}

// FailuresErr combines participant failures into one error for logging.
// It returns nil when every participant was issued.
func (r *Report) FailuresErr() error {
	var err error
	for _, res := range r.Results {
		if res.Issued() {
			continue
		}
		err = multierr.Append(err, fmt.Errorf("buyer %s: %s %s failure: %s", res.BuyerID, res.FailedStage, res.FailureKind, res.FailureReason))
	}
	return err
}

func newReport(dealID uuid.UUID, disposition enums.SettlementDisposition) *Report {
	return &Report{DealID: dealID, Disposition: disposition, Results: []Result{}}
}

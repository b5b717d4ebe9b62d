package groupbuy

import (
	"time"
)

// Verdict is the outcome of evaluating a deal against its pledges.
type Verdict string

const (
	VerdictCloseSuccess Verdict = "close_success"
	VerdictCloseFailure Verdict = "close_failure"
	VerdictNotDue       Verdict = "not_due"
)

// Evaluation is the verdict for a deal together with the pledged total it was based on.
type Evaluation struct {
	Verdict       Verdict
	TotalQuantity int
}

// Evaluate decides whether an active deal should complete, cancel, or wait.
// Reaching the threshold completes the deal even before expiry.
func Evaluate(deal Deal, pledges []Pledge, now time.Time) (Evaluation, error) {
	if !deal.IsActive() {
		return Evaluation{}, ErrDealNotActive
	}

	total := TotalQuantity(pledges)
	switch {
	case total >= deal.MinQuantity:
		return Evaluation{Verdict: VerdictCloseSuccess, TotalQuantity: total}, nil
	case !now.Before(deal.ExpiresAt):
		return Evaluation{Verdict: VerdictCloseFailure, TotalQuantity: total}, nil
	default:
		return Evaluation{Verdict: VerdictNotDue, TotalQuantity: total}, nil
	}
}

package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/groupbuy-settlement/internal/groupbuy"
	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
)

// participant is one buyer of a deal; repeated pledges by the same buyer are
// merged so each buyer receives a single order.
type participant struct {
	BuyerID  uuid.UUID
	Quantity int
}

// consolidate merges pledges per buyer, keeping first-pledge order.
func consolidate(pledges []groupbuy.Pledge) []participant {
	index := make(map[uuid.UUID]int, len(pledges))
	out := make([]participant, 0, len(pledges))
	for _, p := range pledges {
		if i, ok := index[p.BuyerID]; ok {
			out[i].Quantity += p.Quantity
			continue
		}
		index[p.BuyerID] = len(out)
		out = append(out, participant{BuyerID: p.BuyerID, Quantity: p.Quantity})
	}
	return out
}

// fanOut issues every participant with at most s.concurrency in flight and
// returns results in participant order. A participant's failure is captured
// in its result and never cancels its siblings.
func (s *Service) fanOut(ctx context.Context, deal *groupbuy.Deal, unitPrice int64, participants []participant, prior map[uuid.UUID]Result) []Result {
	results := make([]Result, len(participants))
	if len(participants) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, p := range participants {
		g.Go(func() error {
			results[i] = s.issueParticipant(ctx, deal, unitPrice, p, prior[p.BuyerID])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) issueParticipant(ctx context.Context, deal *groupbuy.Deal, unitPrice int64, p participant, prior Result) Result {
	ctx = s.logg.WithBuyerID(ctx, p.BuyerID.String())
	ctx, span := tracer.Start(ctx, "settlement.participant")
	span.SetAttributes(attribute.String("buyer.id", p.BuyerID.String()))
	defer span.End()

	key := IdempotencyKey(deal.ID, p.BuyerID)
	res := Result{BuyerID: p.BuyerID, Quantity: p.Quantity}

	var orderRef string
	if prior.OrderRef != nil && *prior.OrderRef != "" {
		orderRef = *prior.OrderRef
	} else {
		ref, err := s.callIssuer(ctx, func(callCtx context.Context) (string, error) {
			return s.orders.CreateOrder(callCtx, OrderRequest{
				IdempotencyKey: key,
				DealID:         deal.ID,
				BuyerID:        p.BuyerID,
				SellerRef:      deal.SellerRef,
				ProductRef:     deal.ProductRef,
				Quantity:       p.Quantity,
				UnitPriceCents: unitPrice,
				Currency:       deal.Currency,
			})
		})
		if err != nil {
			return s.complete(ctx, deal.ID, markFailed(res, enums.FailureStageOrder, err))
		}
		orderRef = ref
	}
	res.OrderRef = &orderRef

	paymentRef, err := s.callIssuer(ctx, func(callCtx context.Context) (string, error) {
		return s.payments.Authorize(callCtx, PaymentRequest{
			OrderRef:       orderRef,
			BuyerID:        p.BuyerID,
			AmountCents:    unitPrice * int64(p.Quantity),
			Currency:       deal.Currency,
			IdempotencyKey: key,
		})
	})
	if err != nil {
		return s.complete(ctx, deal.ID, markFailed(res, enums.FailureStagePayment, err))
	}

	res.PaymentRef = &paymentRef
	res.Outcome = enums.SettlementOutcomeIssued
	return s.complete(ctx, deal.ID, res)
}

type issuerCall func(ctx context.Context) (string, error)

type callResult struct {
	ref string
	err error
}

// callIssuer runs fn under the per-call timeout. The deadline is enforced
// even when fn ignores its context; a late reply is discarded and the
// idempotency key makes the next attempt converge on the same reference.
func (s *Service) callIssuer(ctx context.Context, fn issuerCall) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.issuerTimeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("issuer panic: %v", r)}
			}
		}()
		ref, err := fn(callCtx)
		done <- callResult{ref: ref, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil && out.ref == "" {
			return "", fmt.Errorf("issuer returned an empty reference")
		}
		return out.ref, out.err
	case <-callCtx.Done():
		return "", callCtx.Err()
	}
}

func markFailed(res Result, stage enums.FailureStage, err error) Result {
	kind, reason := classify(err)
	res.Outcome = enums.SettlementOutcomeFailed
	res.FailedStage = stage
	res.FailureKind = kind
	res.FailureReason = reason
	return res
}

// complete records res in the ledger and metrics. Ledger errors are logged
// only: the deal is already finalized and resume re-derives missing rows
// through the issuers' idempotency keys.
func (s *Service) complete(ctx context.Context, dealID uuid.UUID, res Result) Result {
	if err := s.ledger.RecordResult(context.WithoutCancel(ctx), dealID, res); err != nil {
		s.logg.Error(ctx, "failed to record settlement result", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveParticipant(res.Outcome.String(), res.FailureKind.String())
	}
	if !res.Issued() {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"failed_stage":   res.FailedStage.String(),
			"failure_kind":   res.FailureKind.String(),
			"failure_reason": res.FailureReason,
		}), "participant settlement failed")
	}
	return res
}

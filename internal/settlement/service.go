package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/groupbuy-settlement/internal/groupbuy"
	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-settlement/pkg/errors"
	"github.com/angelmondragon/groupbuy-settlement/pkg/logger"
)

const (
	defaultConcurrency   = 8
	defaultIssuerTimeout = 10 * time.Second

	operationSettle = "settle"
	operationResume = "resume"
)

var tracer = otel.Tracer("github.com/angelmondragon/groupbuy-settlement/internal/settlement")

// ServiceParams wires the settlement service.
type ServiceParams struct {
	Store    DealStore
	Orders   OrderIssuer
	Payments PaymentIssuer
	Ledger   Ledger
	Claimer  Claimer
	Logger   *logger.Logger
	Metrics  Recorder

	// Concurrency bounds the number of participants issued at once.
	Concurrency int
	// IssuerTimeout bounds each order and payment call.
	IssuerTimeout time.Duration
	Now           func() time.Time
}

// Service settles group-buy deals: it claims a deal, evaluates its pledges,
// finalizes the status, and issues orders and payment holds per participant.
type Service struct {
	store         DealStore
	orders        OrderIssuer
	payments      PaymentIssuer
	ledger        Ledger
	claimer       Claimer
	logg          *logger.Logger
	metrics       Recorder
	concurrency   int
	issuerTimeout time.Duration
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("deal store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order issuer required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment issuer required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("settlement ledger required")
	}
	if params.Claimer == nil {
		return nil, fmt.Errorf("claimer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	timeout := params.IssuerTimeout
	if timeout <= 0 {
		timeout = defaultIssuerTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:         params.Store,
		orders:        params.Orders,
		payments:      params.Payments,
		ledger:        params.Ledger,
		claimer:       params.Claimer,
		logg:          params.Logger,
		metrics:       params.Metrics,
		concurrency:   concurrency,
		issuerTimeout: timeout,
		now:           now,
	}, nil
}

// Settle decides the outcome of an active deal and, when it completes, fans
// out one order and one payment hold per participant. Business outcomes are
// reported through the returned Report; an error means a store was
// unavailable before the deal was finalized and the call may be retried.
func (s *Service) Settle(ctx context.Context, dealID uuid.UUID) (*Report, error) {
	return s.run(ctx, operationSettle, dealID, s.settle)
}

// ResumeSettlement retries participants of a completed deal whose previous
// fan-out failed transiently. Issued and permanently failed participants are
// reported from the ledger without new issuer calls.
func (s *Service) ResumeSettlement(ctx context.Context, dealID uuid.UUID) (*Report, error) {
	return s.run(ctx, operationResume, dealID, s.resume)
}

type attemptFunc func(ctx context.Context, dealID uuid.UUID) (*Report, error)

func (s *Service) run(ctx context.Context, operation string, dealID uuid.UUID, fn attemptFunc) (*Report, error) {
	started := time.Now()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"deal_id":   dealID.String(),
		"operation": operation,
	})
	ctx, span := tracer.Start(ctx, "settlement."+operation, trace.WithAttributes(
		attribute.String("deal.id", dealID.String()),
	))
	defer span.End()

	report, err := s.withLease(ctx, dealID, fn)
	elapsed := time.Since(started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement aborted")
		s.observeAttempt(operation, "error", elapsed)
		s.logg.Error(ctx, "settlement attempt aborted", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("settlement.disposition", report.Disposition.String()),
		attribute.Int("settlement.issued", report.IssuedCount()),
		attribute.Int("settlement.failed", report.FailedCount()),
	)
	s.observeAttempt(operation, report.Disposition.String(), elapsed)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"disposition":    report.Disposition.String(),
		"final_status":   report.FinalStatus.String(),
		"total_quantity": report.TotalQuantity,
		"issued":         report.IssuedCount(),
		"failed":         report.FailedCount(),
		"duration_ms":    elapsed.Milliseconds(),
	})
	if failures := report.FailuresErr(); failures != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "failures", failures.Error()), "settlement attempt finished with participant failures")
	} else {
		s.logg.Info(logCtx, "settlement attempt finished")
	}
	return report, nil
}

func (s *Service) withLease(ctx context.Context, dealID uuid.UUID, fn attemptFunc) (*Report, error) {
	lease, ok, err := s.claimer.Claim(ctx, dealID)
	if err != nil {
		return nil, storeUnavailable(err, "claim settlement lease")
	}
	if !ok {
		s.logg.Info(ctx, "settlement lease held by another attempt")
		return newReport(dealID, enums.SettlementDispositionClaimConflict), nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to release settlement lease")
		}
	}()
	return fn(ctx, dealID)
}

func (s *Service) settle(ctx context.Context, dealID uuid.UUID) (*Report, error) {
	deal, report, err := s.loadDeal(ctx, dealID)
	if err != nil || report != nil {
		return report, err
	}
	if !deal.IsActive() {
		report := newReport(dealID, enums.SettlementDispositionClaimConflict)
		report.FinalStatus = deal.Status
		report.MinQuantity = deal.MinQuantity
		s.logg.Info(ctx, "deal already settled")
		return report, nil
	}

	pledges, err := s.store.ListPledges(ctx, dealID)
	if err != nil {
		return nil, storeUnavailable(err, "list pledges")
	}

	eval, err := groupbuy.Evaluate(*deal, pledges, s.now())
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"verdict":        string(eval.Verdict),
		"total_quantity": eval.TotalQuantity,
		"min_quantity":   deal.MinQuantity,
	}), "deal evaluated")

	report = newReport(dealID, enums.SettlementDispositionSettled)
	report.TotalQuantity = eval.TotalQuantity
	report.MinQuantity = deal.MinQuantity

	switch eval.Verdict {
	case groupbuy.VerdictNotDue:
		report.Disposition = enums.SettlementDispositionNotDue
		report.FinalStatus = enums.DealStatusActive
		return report, nil

	case groupbuy.VerdictCloseFailure:
		won, err := s.finalize(ctx, dealID, enums.DealStatusCancelled)
		if err != nil {
			return nil, err
		}
		if !won {
			return s.lostRace(ctx, report), nil
		}
		report.FinalStatus = enums.DealStatusCancelled
		return report, nil

	case groupbuy.VerdictCloseSuccess:
		price := groupbuy.DiscountedUnitPrice(deal.UnitPriceCents, deal.DiscountPercentage)
		report.DiscountedUnitPriceCents = price

		won, err := s.finalize(ctx, dealID, enums.DealStatusCompleted)
		if err != nil {
			return nil, err
		}
		if !won {
			return s.lostRace(ctx, report), nil
		}
		report.FinalStatus = enums.DealStatusCompleted

		// The deal is finalized: the fan-out must not be cut short by the
		// caller going away, only by the per-call issuer timeout.
		issueCtx := context.WithoutCancel(ctx)

		// The store stops accepting pledges once the deal leaves active, so
		// a re-read now returns the frozen set. Pledges committed after the
		// evaluation read are only visible here.
		if frozen, err := s.store.ListPledges(issueCtx, dealID); err != nil {
			s.logg.Error(issueCtx, "re-reading frozen pledges failed, issuing evaluated set", err)
			report.ResumeRequired = true
		} else {
			pledges = frozen
			report.TotalQuantity = groupbuy.TotalQuantity(frozen)
		}
		report.Results = s.fanOut(issueCtx, deal, price, consolidate(pledges), nil)
		return report, nil

	default:
		return nil, fmt.Errorf("unknown verdict %q", eval.Verdict)
	}
}

func (s *Service) resume(ctx context.Context, dealID uuid.UUID) (*Report, error) {
	deal, report, err := s.loadDeal(ctx, dealID)
	if err != nil || report != nil {
		return report, err
	}
	if deal.Status != enums.DealStatusCompleted {
		report := newReport(dealID, enums.SettlementDispositionNotResumable)
		report.FinalStatus = deal.Status
		report.MinQuantity = deal.MinQuantity
		return report, nil
	}

	pledges, err := s.store.ListPledges(ctx, dealID)
	if err != nil {
		return nil, storeUnavailable(err, "list pledges")
	}
	recorded, err := s.ledger.ListResults(ctx, dealID)
	if err != nil {
		return nil, storeUnavailable(err, "list settlement results")
	}
	prior := make(map[uuid.UUID]Result, len(recorded))
	for _, res := range recorded {
		prior[res.BuyerID] = res
	}

	price := groupbuy.DiscountedUnitPrice(deal.UnitPriceCents, deal.DiscountPercentage)
	participants := consolidate(pledges)
	results := make([]Result, len(participants))

	var (
		retry     []participant
		positions []int
	)
	for i, p := range participants {
		if res, ok := prior[p.BuyerID]; ok && !res.Retryable() {
			results[i] = res
			continue
		}
		retry = append(retry, p)
		positions = append(positions, i)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"participants": len(participants),
		"retrying":     len(retry),
	}), "resuming settlement fan-out")

	for i, res := range s.fanOut(context.WithoutCancel(ctx), deal, price, retry, prior) {
		results[positions[i]] = res
	}

	report = newReport(dealID, enums.SettlementDispositionResumed)
	report.FinalStatus = enums.DealStatusCompleted
	report.TotalQuantity = groupbuy.TotalQuantity(pledges)
	report.MinQuantity = deal.MinQuantity
	report.DiscountedUnitPriceCents = price
	report.Results = results
	return report, nil
}

// loadDeal returns either the deal or a not_found report.
func (s *Service) loadDeal(ctx context.Context, dealID uuid.UUID) (*groupbuy.Deal, *Report, error) {
	deal, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		if errors.Is(err, groupbuy.ErrDealNotFound) {
			s.logg.Info(ctx, "deal not found")
			return nil, newReport(dealID, enums.SettlementDispositionNotFound), nil
		}
		return nil, nil, storeUnavailable(err, "read deal")
	}
	return deal, nil, nil
}

func (s *Service) finalize(ctx context.Context, dealID uuid.UUID, target enums.DealStatus) (bool, error) {
	won, err := s.store.CompareAndSwapStatus(ctx, dealID, enums.DealStatusActive, target)
	if err != nil {
		return false, storeUnavailable(err, "finalize deal status")
	}
	if won {
		s.logg.Info(s.logg.WithField(ctx, "final_status", target.String()), "deal finalized")
	}
	return won, nil
}

func (s *Service) lostRace(ctx context.Context, report *Report) *Report {
	s.logg.Info(ctx, "deal finalized by another attempt")
	report.Disposition = enums.SettlementDispositionClaimConflict
	report.DiscountedUnitPriceCents = 0
	return report
}

func (s *Service) observeAttempt(operation, disposition string, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveAttempt(operation, disposition, d)
}

func storeUnavailable(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeDependency {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

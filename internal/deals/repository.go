package deals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/groupbuy-settlement/internal/groupbuy"
	dbpkg "github.com/angelmondragon/groupbuy-settlement/pkg/db"
	"github.com/angelmondragon/groupbuy-settlement/pkg/db/models"
	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-settlement/pkg/errors"
	"github.com/angelmondragon/groupbuy-settlement/pkg/outbox"
)

var settlementActor = &outbox.ActorRef{Service: "groupbuy-settlement", Role: "system"}

type txRunner interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Repository is the gorm-backed deal store.
type Repository struct {
	db     txRunner
	outbox *outbox.Service
	now    func() time.Time
}

func NewRepository(db txRunner, outboxSvc *outbox.Service) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db client required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &Repository{db: db, outbox: outboxSvc, now: time.Now}, nil
}

func (r *Repository) GetDeal(ctx context.Context, id uuid.UUID) (*groupbuy.Deal, error) {
	var row models.GroupBuyDeal
	if err := r.db.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, groupbuy.ErrDealNotFound
		}
		return nil, fmt.Errorf("get deal: %w", err)
	}
	deal, err := groupbuy.DealFromModel(row)
	if err != nil {
		return nil, fmt.Errorf("decode deal %s: %w", id, err)
	}
	return &deal, nil
}

func (r *Repository) ListPledges(ctx context.Context, dealID uuid.UUID) ([]groupbuy.Pledge, error) {
	var rows []models.DealPledge
	if err := r.db.DB().WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list pledges: %w", err)
	}
	pledges := make([]groupbuy.Pledge, 0, len(rows))
	for _, row := range rows {
		p, err := groupbuy.PledgeFromModel(row)
		if err != nil {
			return nil, fmt.Errorf("decode pledge %s: %w", row.ID, err)
		}
		pledges = append(pledges, p)
	}
	return pledges, nil
}

// CompareAndSwapStatus moves the deal from expected to next only if it is
// still in expected. A move into a terminal status stamps settled_at and
// queues the matching outbox event in the same transaction.
func (r *Repository) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, expected, next enums.DealStatus) (bool, error) {
	if !next.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid deal status %q", next))
	}

	swapped := false
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		now := r.now().UTC()
		updates := map[string]any{
			"status":     next,
			"updated_at": now,
		}
		if next.IsTerminal() {
			updates["settled_at"] = now
		}

		res := tx.Model(&models.GroupBuyDeal{}).
			Where("id = ? AND status = ?", id, expected).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		swapped = true

		if !next.IsTerminal() {
			return nil
		}
		var row models.GroupBuyDeal
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		eventType, err := enums.DealEventType(next)
		if err != nil {
			return err
		}
		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateGroupBuyDeal,
			AggregateID:   id,
			Actor:         settlementActor,
			OccurredAt:    now,
			Data: outbox.DealSettledPayload{
				DealID:     id,
				ProductRef: row.ProductRef,
				SellerRef:  row.SellerRef,
				Status:     next,
				SettledAt:  now,
			},
		})
	})
	if err != nil {
		return false, fmt.Errorf("compare and swap deal status: %w", err)
	}
	return swapped, nil
}

// CreateDeal stores a new deal.
func (r *Repository) CreateDeal(ctx context.Context, deal groupbuy.Deal) error {
	row := deal.ToModel()
	if err := r.db.DB().WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create deal: %w", err)
	}
	return nil
}

// CreatePledge stores a pledge while the deal is still accepting them.
// Pledges are rejected once the deal has left active or has expired, which
// freezes the pledge set seen by settlement.
func (r *Repository) CreatePledge(ctx context.Context, pledge groupbuy.Pledge) error {
	if pledge.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "pledge quantity must be positive")
	}

	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		var deal models.GroupBuyDeal
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("id = ?", pledge.DealID).
			First(&deal).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return groupbuy.ErrDealNotFound
			}
			return fmt.Errorf("lock deal: %w", err)
		}
		if deal.Status != enums.DealStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "deal is no longer accepting pledges").
				WithDetails(map[string]any{"status": deal.Status.String()})
		}
		if !r.now().Before(deal.ExpiresAt) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "deal has expired")
		}

		row := pledge.ToModel()
		if row.CreatedAt.IsZero() {
			row.CreatedAt = r.now().UTC()
		}
		if err := tx.Create(&row).Error; err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "buyer already pledged to this deal")
			}
			return fmt.Errorf("create pledge: %w", err)
		}
		return nil
	})
}

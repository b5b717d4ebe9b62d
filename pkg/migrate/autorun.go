package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/groupbuy-settlement/pkg/config"
	"github.com/angelmondragon/groupbuy-settlement/pkg/db"
	"github.com/angelmondragon/groupbuy-settlement/pkg/db/models"
	"github.com/angelmondragon/groupbuy-settlement/pkg/logger"
)

// schemaModels lists every table the settlement engine owns.
var schemaModels = []any{
	&models.GroupBuyDeal{},
	&models.DealPledge{},
	&models.SettlementItem{},
	&models.GroupBuyOrder{},
	&models.BuyerPaymentMethod{},
	&models.OutboxEvent{},
}

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled. Postgres runs the goose migrations; the sqlite
// driver used for local runs gets a GORM auto-migrated schema instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	meta := map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver}
	ctx = logg.WithFields(ctx, meta)

	if cfg.DB.Driver == "sqlite" {
		logg.Info(ctx, "running GORM auto-migrate (dev sqlite)")
		if err := client.DB().WithContext(ctx).AutoMigrate(schemaModels...); err != nil {
			return fmt.Errorf("auto-migrating sqlite schema: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	runner, err := NewRunner(sqlDB, Embedded())
	if err != nil {
		return err
	}
	applied, err := runner.Up(ctx)
	if err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(logg.WithField(ctx, "applied", applied), "goose migrations completed")
	return nil
}

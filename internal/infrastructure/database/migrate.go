package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/menunoar/billing/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.TenantSubscription{},
		&model.BillingWebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run auto-migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed")
	return nil
}

// createCustomTypes creates the enum types the models map onto. Postgres has
// no CREATE TYPE IF NOT EXISTS, hence the guarded DO blocks.
func createCustomTypes(db *gorm.DB) error {
	types := []string{
		`DO $$ BEGIN
			CREATE TYPE subscription_status AS ENUM ('none', 'trialing', 'active', 'past_due_or_canceled');
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			CREATE TYPE plan_tier AS ENUM ('free', 'pro');
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			CREATE TYPE webhook_status AS ENUM ('pending', 'completed', 'failed');
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
	}

	for _, t := range types {
		if err := db.Exec(t).Error; err != nil {
			return fmt.Errorf("failed to create custom type: %w", err)
		}
	}

	return nil
}

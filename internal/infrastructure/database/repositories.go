package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/menunoar/billing/internal/adapter/repository"
	domainRepo "github.com/menunoar/billing/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Tenant        domainRepo.TenantRepository
	WebhookEvents repository.WebhookEventRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Tenant:        repository.NewTenantRepository(db, logger),
		WebhookEvents: repository.NewWebhookEventRepository(db, logger),
	}
}

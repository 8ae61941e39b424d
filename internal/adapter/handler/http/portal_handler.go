package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/menunoar/billing/internal/domain/errors"
	"github.com/menunoar/billing/internal/domain/model"
	"github.com/menunoar/billing/internal/domain/repository"
)

// PortalSessionCreator creates a hosted billing-portal session for a bound
// provider customer.
type PortalSessionCreator interface {
	PortalURL(ctx context.Context, customerRef, returnURL string) (string, error)
}

// PortalHandler sends a tenant to the provider's hosted subscription
// management pages.
type PortalHandler struct {
	logger    *zap.Logger
	tenants   repository.TenantRepository
	portal    PortalSessionCreator
	returnURL string
}

// NewPortalHandler creates a new portal handler
func NewPortalHandler(logger *zap.Logger, tenants repository.TenantRepository, portal PortalSessionCreator, returnURL string) *PortalHandler {
	return &PortalHandler{
		logger:    logger,
		tenants:   tenants,
		portal:    portal,
		returnURL: returnURL,
	}
}

type PortalRequest struct {
	TenantID  string `json:"tenant_id" validate:"required,uuid"`
	ReturnURL string `json:"return_url,omitempty" validate:"omitempty,url"`
}

// CreatePortalSession resolves the tenant's bound customer and returns the
// portal URL. Tenants with no bound customer have nothing to manage yet.
func (h *PortalHandler) CreatePortalSession(c echo.Context) error {
	var req PortalRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "tenant_id is required",
		})
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "tenant_id must be a UUID",
		})
	}

	rec, err := h.boundTenant(c.Request().Context(), tenantID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTenantNotFound) || errors.Is(err, domainErrors.ErrNoCustomerRef) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "Customer not found or no subscription active",
			})
		}
		h.logger.Error("Failed to load tenant for portal session",
			zap.String("tenant_id", req.TenantID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to load tenant",
		})
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = h.returnURL
	}

	url, err := h.portal.PortalURL(c.Request().Context(), *rec.BillingCustomerRef, returnURL)
	if err != nil {
		h.logger.Error("Failed to create portal session",
			zap.String("tenant_id", req.TenantID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to create portal session",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// boundTenant loads the record and requires a bound provider customer
func (h *PortalHandler) boundTenant(ctx context.Context, tenantID uuid.UUID) (*model.TenantSubscription, error) {
	rec, err := h.tenants.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domainErrors.ErrTenantNotFound
	}
	if !rec.HasCustomerRef() {
		return nil, domainErrors.ErrNoCustomerRef
	}
	return rec, nil
}

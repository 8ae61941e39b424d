package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/menunoar/billing/internal/domain/errors"
	"github.com/menunoar/billing/internal/usecase"
)

// SyncHandler is the pull path's HTTP face: the dashboard calls it once per
// session when the push path may have been missed.
type SyncHandler struct {
	logger     *zap.Logger
	reconciler *usecase.Reconciler
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *zap.Logger, reconciler *usecase.Reconciler) *SyncHandler {
	return &SyncHandler{
		logger:     logger,
		reconciler: reconciler,
	}
}

type SyncRequest struct {
	TenantID    string `json:"tenant_id" validate:"required,uuid"`
	TenantEmail string `json:"tenant_email" validate:"required,email"`
}

// SyncStatus runs the reconciliation sweep for one tenant
func (h *SyncHandler) SyncStatus(c echo.Context) error {
	var req SyncRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "tenant_id and tenant_email are required",
		})
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "tenant_id must be a UUID",
		})
	}

	h.logger.Info("Starting subscription sync",
		zap.String("tenant_id", req.TenantID),
		zap.String("tenant_email", req.TenantEmail),
	)

	result, err := h.reconciler.Sync(c.Request().Context(), tenantID, req.TenantEmail)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTenantNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{
				"error": "No tenant record for this id",
			})
		}
		h.logger.Error("Subscription sync failed",
			zap.String("tenant_id", req.TenantID),
			zap.Error(err))
		// The caller treats this as "unknown, assume unchanged"
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Sync failed",
		})
	}

	return c.JSON(http.StatusOK, result)
}

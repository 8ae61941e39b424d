package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ConfigHandler exposes the public billing settings the frontend needs to
// render its checkout button. The payment link is a Stripe-hosted URL; the
// frontend appends the tenant ID as client_reference_id before redirecting,
// which is what the checkout back-reference lookup relies on later.
type ConfigHandler struct {
	paymentLinkURL string
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(paymentLinkURL string) *ConfigHandler {
	return &ConfigHandler{paymentLinkURL: paymentLinkURL}
}

// GetConfig returns public billing configuration
func (h *ConfigHandler) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"stripe_payment_link": h.paymentLinkURL,
	})
}

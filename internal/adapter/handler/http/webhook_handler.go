package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/menunoar/billing/internal/adapter/repository"
	"github.com/menunoar/billing/internal/usecase"
)

// WebhookHandler is the push path: it receives Stripe's signed notifications,
// verifies them before any parsing, and hands the projected events to the
// ingest service. Stripe redelivers on 5xx, so datastore failures map to 500
// and everything the engine chooses to drop still answers 200.
type WebhookHandler struct {
	logger        *zap.Logger
	webhookSecret string
	ingest        *usecase.IngestService
	events        repository.WebhookEventRepository
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *zap.Logger, webhookSecret string, ingest *usecase.IngestService, events repository.WebhookEventRepository) *WebhookHandler {
	return &WebhookHandler{
		logger:        logger,
		webhookSecret: webhookSecret,
		ingest:        ingest,
		events:        events,
	}
}

// HandleWebhook processes a single signed Stripe event
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading request body", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	sig := c.Request().Header.Get("Stripe-Signature")

	event, err := webhook.ConstructEventWithOptions(
		body,
		sig,
		h.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)

	if err != nil {
		h.logger.Error("Webhook signature verification failed",
			zap.Error(err),
			zap.String("signature", sig),
		)
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Webhook signature verification failed",
		})
	}

	h.logger.Info("Webhook event received",
		zap.String("type", string(event.Type)),
		zap.String("id", event.ID),
	)

	// Audit row is best effort; reconciliation never depends on it.
	if h.events != nil {
		if err := h.events.SaveEvent(c.Request().Context(), event.ID, string(event.Type), event.Data.Raw); err != nil {
			h.logger.Warn("Failed to record webhook audit row",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}

	if err := h.dispatch(c, event); err != nil {
		if h.events != nil {
			_ = h.events.MarkFailed(c.Request().Context(), event.ID, err)
		}
		h.logger.Error("Error processing webhook event",
			zap.String("type", string(event.Type)),
			zap.String("id", event.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Processing failed"})
	}

	if h.events != nil {
		_ = h.events.MarkProcessed(c.Request().Context(), event.ID)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func (h *WebhookHandler) dispatch(c echo.Context, event stripe.Event) error {
	ctx := c.Request().Context()

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			// Verified but unparseable payloads must not be retried blindly
			h.logger.Error("Error parsing checkout session, dropping", zap.Error(err))
			return nil
		}

		ev := usecase.CheckoutCompletedEvent{
			TenantRef: session.ClientReferenceID,
		}
		if session.Customer != nil {
			ev.CustomerRef = session.Customer.ID
		}
		if session.Subscription != nil {
			ev.SubscriptionRef = session.Subscription.ID
		}
		return h.ingest.CheckoutCompleted(ctx, ev)

	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			h.logger.Error("Error parsing subscription event, dropping", zap.Error(err))
			return nil
		}

		ev := usecase.SubscriptionChangedEvent{
			ProviderStatus: string(sub.Status),
		}
		if sub.Customer != nil {
			ev.CustomerRef = sub.Customer.ID
		}
		if event.Type == stripe.EventTypeCustomerSubscriptionDeleted && ev.ProviderStatus == "" {
			ev.ProviderStatus = "canceled"
		}
		return h.ingest.SubscriptionChanged(ctx, ev)

	default:
		h.logger.Debug("Unhandled event type",
			zap.String("type", string(event.Type)),
		)
		return nil
	}
}

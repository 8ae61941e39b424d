package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/menunoar/billing/internal/adapter/handler/http"
	"github.com/menunoar/billing/internal/config"
	"github.com/menunoar/billing/internal/infrastructure/database"
	stripeProvider "github.com/menunoar/billing/internal/infrastructure/provider/stripe"
	"github.com/menunoar/billing/internal/logger"
	"github.com/menunoar/billing/internal/middleware/auth"
	"github.com/menunoar/billing/internal/usecase"
)

// requestValidator adapts go-playground/validator onto echo's Validator hook
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

type Server struct {
	config  *config.Config
	logger  *zap.Logger
	echo    *echo.Echo
	repos   *database.Repositories
	billing *stripeProvider.Client
}

// NewServer wires the full engine: the Stripe client, both reconciliation
// paths, and the inbound HTTP surface. Everything is constructed here at
// process start and injected; there is no lazy global state.
func NewServer(cfg *config.Config, log *zap.Logger, repos *database.Repositories) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST},
	}))

	billing := stripeProvider.NewClient(cfg.Service.StripeSecretKey, cfg.Service.ProviderCallTimeout, log)

	return &Server{
		config:  cfg,
		logger:  log,
		echo:    e,
		repos:   repos,
		billing: billing,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	ingest := usecase.NewIngestService(s.repos.Tenant, s.logger)
	reconciler := usecase.NewReconciler(s.repos.Tenant, s.billing, s.config.Service.CheckoutScanLimit, s.logger)

	webhookHandler := handlers.NewWebhookHandler(s.logger, s.config.Service.StripeWebhookSecret, ingest, s.repos.WebhookEvents)
	syncHandler := handlers.NewSyncHandler(s.logger, reconciler)
	portalHandler := handlers.NewPortalHandler(s.logger, s.repos.Tenant, s.billing, s.config.Service.ClientURL)
	configHandler := handlers.NewConfigHandler(s.config.Service.StripePaymentLink)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.Supabase.JWTSecret,
		Logger: s.logger,
	}
	protected := auth.JWTMiddleware(jwtConfig)

	// Webhook route: authenticated by the Stripe signature, never by JWT
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)

	// Frontend-facing routes
	s.echo.POST("/sync_status", syncHandler.SyncStatus, protected)

	v1 := s.echo.Group("/api/v1/billing")
	v1.GET("/config", configHandler.GetConfig)
	v1.POST("/portal", portalHandler.CreatePortalSession, protected)
}

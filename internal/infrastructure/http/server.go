package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/harborpay/reconciler/internal/adapter/handler/http"
	"github.com/harborpay/reconciler/internal/config"
	"github.com/harborpay/reconciler/internal/domain/provider"
	"github.com/harborpay/reconciler/internal/domain/repository"
	"github.com/harborpay/reconciler/internal/infrastructure/database"
	providerRegistry "github.com/harborpay/reconciler/internal/infrastructure/provider"
	"github.com/harborpay/reconciler/internal/middleware/auth"
	"github.com/harborpay/reconciler/internal/middleware/correlation"
	"github.com/harborpay/reconciler/internal/pubsub"
	"github.com/harborpay/reconciler/internal/usecase"
	"github.com/harborpay/reconciler/pkg/logger"
)

type Server struct {
	config      *config.Config
	logger      *zap.Logger
	echo        *echo.Echo
	repos       *database.Repositories
	registry    *providerRegistry.Registry
	bus         *pubsub.Distributor
	statusCache repository.StatusCache
}

func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	repos *database.Repositories,
	registry *providerRegistry.Registry,
	bus *pubsub.Distributor,
	statusCache repository.StatusCache,
) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(correlation.Middleware())
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST},
	}))

	return &Server{
		config:      cfg,
		logger:      log,
		echo:        e,
		repos:       repos,
		registry:    registry,
		bus:         bus,
		statusCache: statusCache,
	}
}

func (s *Server) Start() error {
	// Setup routes
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

	// Initialize usecases
	remotes := make(map[string]provider.RemoteVerifier)
	preferences := make(map[string]provider.PreferenceCreator)
	for _, name := range s.registry.Names() {
		entry, _ := s.registry.Get(name)
		if entry.Remote != nil {
			remotes[name] = entry.Remote
		}
		if entry.Preference != nil {
			preferences[name] = entry.Preference
		}
	}

	reconcileUsecase := usecase.NewReconcileUsecase(
		s.repos.Ledger, s.repos.Snapshot, s.statusCache, s.repos.OrderLookup,
		s.bus, remotes, s.logger)
	statusUsecase := usecase.NewStatusUsecase(s.repos.Snapshot, s.statusCache, s.logger)
	checkoutUsecase := usecase.NewCheckoutUsecase(s.repos.Snapshot, preferences, s.logger)

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(s.registry, reconcileUsecase, s.logger)
	statusHandler := handlers.NewStatusHandler(statusUsecase, s.logger)
	streamHandler := handlers.NewStreamHandler(statusUsecase, s.bus,
		time.Duration(s.config.Service.KeepAliveSeconds)*time.Second, s.logger)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutUsecase, s.logger)
	ledgerHandler := handlers.NewLedgerHandler(s.repos.Ledger, s.logger)

	// Webhook ingress (outside API versioning)
	s.echo.POST("/webhook/:provider", webhookHandler.HandleWebhook)
	s.echo.POST("/webhook/:provider/:secret", webhookHandler.HandleWebhook)

	// Client-facing status surface
	s.echo.GET("/:provider/status", statusHandler.GetStatus)
	s.echo.GET("/:provider/stream", streamHandler.StreamStatus)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/checkout", checkoutHandler.CreateCheckout)

	// Internal/Debug routes (require JWT authentication)
	internal := v1.Group("/internal", auth.JWTMiddleware(auth.JWTConfig{
		Secret: s.config.Service.InternalJWTSecret,
		Logger: s.logger,
	}))
	internal.GET("/ledger", ledgerHandler.ListRecent)
	internal.GET("/ledger/:event_id", ledgerHandler.GetByEventID)
}

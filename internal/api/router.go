package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/acqadvantage/assistant-api/docs"
	"github.com/acqadvantage/assistant-api/internal/api/handler"
	"github.com/acqadvantage/assistant-api/internal/api/middleware"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
	"github.com/acqadvantage/assistant-api/internal/core/service"
	"github.com/acqadvantage/assistant-api/internal/infrastructure/queue"
	"github.com/acqadvantage/assistant-api/internal/pkg/config"
	"github.com/acqadvantage/assistant-api/pkg/logger"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(
	cfg *config.Config,
	db *mongo.Database,
	rdb *redis.Client,
	users ports.UserRepository,
	assistant ports.AssistantClient,
	billing ports.BillingService,
	dispatcher *queue.Dispatcher,
) *echo.Echo {
	log := logger.Get()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("assistant"))

	// --- Dependencies ---
	quotaService := service.NewQuotaService(users, cfg.QuotaDailyLimit, log)
	threadService := service.NewThreadService(users, assistant, log)
	relayService := service.NewRelayService(assistant, time.Duration(cfg.Assistant.RunTimeoutSeconds)*time.Second, log)

	chatHandler := handler.NewChatHandler(quotaService, threadService, relayService, log)
	billingHandler := handler.NewBillingHandler(billing, dispatcher, log)
	authMiddleware := middleware.Auth(cfg.JWTSecret)

	// --- Authenticated API ---
	v1 := e.Group("/v1", authMiddleware)
	v1.POST("/chat/start", chatHandler.Start)
	v1.POST("/chat/ask", chatHandler.Ask)
	v1.POST("/chat/reset", chatHandler.Reset)
	v1.POST("/billing/checkout", billingHandler.Checkout)
	v1.POST("/billing/verify", billingHandler.Verify)

	// --- Provider webhook (signature-verified, no bearer auth) ---
	e.POST("/webhooks/stripe", billingHandler.Webhook)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)
	assistantProbe := handler.NewAssistantProbeHandler(assistant)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/test-assistant", assistantProbe.Probe)      // manual upstream check

	// --- Observability and docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/stripe/stripe-go/v79"
	"golang.org/x/sync/errgroup"

	"github.com/acqadvantage/assistant-api/internal/api"
	"github.com/acqadvantage/assistant-api/internal/core/service"
	"github.com/acqadvantage/assistant-api/internal/infrastructure/assistant"
	mongostore "github.com/acqadvantage/assistant-api/internal/infrastructure/db/mongo"
	redisstore "github.com/acqadvantage/assistant-api/internal/infrastructure/db/redis"
	"github.com/acqadvantage/assistant-api/internal/infrastructure/queue"
	"github.com/acqadvantage/assistant-api/internal/pkg/config"
	"github.com/acqadvantage/assistant-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// @title           AcqAdvantage Assistant API
// @version         1.0
// @description     Backend mediating end users, a hosted conversational assistant, and subscription billing.
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	stripe.Key = cfg.Stripe.SecretKey

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	users := mongostore.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("index creation failed")
	}

	assistantClient := assistant.New(assistant.Config{
		BaseURL:     cfg.Assistant.BaseURL,
		APIKey:      cfg.Assistant.APIKey,
		AssistantID: cfg.Assistant.AssistantID,
	}, log)

	deduper := redisstore.NewEventDeduper(rdb)
	billing := service.NewBillingService(users, deduper, service.BillingConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
		PriceMonthly:  cfg.Stripe.PriceMonthly,
		PriceAnnual:   cfg.Stripe.PriceAnnual,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
	}, log)

	dispatcher := queue.NewDispatcher(cfg.Stripe.WebhookWorkers, billing, log)
	dispatcher.Start(ctx)

	e := api.NewRouter(cfg, db, rdb, users, assistantClient, billing, dispatcher)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server stopped")
}

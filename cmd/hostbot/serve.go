package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hostbot/internal/admission"
	"hostbot/internal/catalog"
	"hostbot/internal/command"
	"hostbot/internal/config"
	"hostbot/internal/database"
	"hostbot/internal/events"
	"hostbot/internal/fulfillment"
	"hostbot/internal/handler"
	"hostbot/internal/messaging"
	"hostbot/internal/notify"
	"hostbot/internal/panel"
	"hostbot/internal/provisioning"
	"hostbot/internal/repository"
	"hostbot/internal/resilience"
	"hostbot/internal/router"
	"hostbot/internal/service"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if store := c.String("store"); store != "" {
		cfg.Store = store
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Str("store", cfg.Store).Msg("starting hostbot")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	orderRepo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	packages, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to load package catalog: %w", err)
	}

	orderService := service.NewOrderService(
		orderRepo,
		packages,
		logger,
		service.WithLocation(cfg.Location()),
		service.WithCurrency(cfg.Notify.Currency),
	)
	packageService := service.NewPackageService(packages, logger)

	messagePolicy := resilience.MessageProfile()
	messagePolicy.Attempts = cfg.Gateway.Attempts
	messagePolicy.Timeout = cfg.Gateway.Timeout

	provisioningPolicy := resilience.ProvisioningProfile()
	provisioningPolicy.Attempts = cfg.Panel.Attempts
	provisioningPolicy.Timeout = cfg.Panel.Timeout

	publisher := newPublisher(cfg.AMQP, logger)
	defer publisher.Close()

	dispatcher := notify.New(
		newSender(cfg.Gateway, logger),
		resilience.NewExecutor(messagePolicy, logger),
		publisher,
		notify.Config{Locale: cfg.Notify.Locale, AdminNumbers: cfg.Notify.AdminNumbers},
		logger,
	)

	panelClient := panel.NewClient(cfg.Panel.URL, cfg.Panel.APIKey, cfg.Panel.ClientAPIKey, cfg.Panel.Timeout, logger)
	orchestrator := provisioning.New(
		orderService,
		packages,
		panelClient,
		resilience.NewExecutor(provisioningPolicy, logger),
		provisioning.Template{
			EmailDomain: cfg.Panel.EmailDomain,
			LocationID:  cfg.Panel.LocationID,
			EggID:       cfg.Panel.EggID,
			DockerImage: cfg.Panel.DockerImage,
			Startup:     cfg.Panel.Startup,
		},
		cfg.Panel.AutoProvision,
		logger,
	)
	if cfg.Panel.AutoProvision {
		logger.Info().Str("panel", panelClient.BaseURL()).Msg("auto-provisioning enabled")
	}

	engine := fulfillment.New(orderService, orchestrator, dispatcher, logger)

	gate := admission.New(admission.Config{
		Window:          cfg.Admission.Window,
		MaxRequests:     cfg.Admission.MaxRequests,
		BlockDuration:   cfg.Admission.BlockDuration,
		DuplicateWindow: cfg.Admission.DuplicateWindow,
		CleanupInterval: cfg.Admission.CleanupInterval,
	}, logger)

	commands := command.NewHandler(gate, engine, packageService, orchestrator, dispatcher, logger)

	mux := router.New(
		handler.NewPackageHandler(packageService, logger),
		handler.NewOrderHandler(engine, logger),
		handler.NewOpsHandler(orderService, orchestrator, gate, dispatcher, commands, cfg.Notify.BulkDelay, logger),
		router.Config{APIKey: cfg.Auth.APIKey, WebhookSecret: cfg.Auth.WebhookSecret},
		logger,
	)

	server := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// provisioning and bulk sends run inside the request
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return gate.Run(ctx)
	})

	g.Go(func() error {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		engine.Wait()

		report := dispatcher.Report()
		logger.Info().
			Uint64("notifications_sent", report.Sent).
			Uint64("notifications_failed", report.Failed).
			Msg("server shutdown completed")
		return nil
	})

	return g.Wait()
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.NewLogger(cfg.Logger)

	pool, err := database.NewPool(c.Context, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	return database.Migrate(c.Context, pool, logger)
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.OrderRepository, func(), error) {
	if cfg.Store == "memory" {
		logger.Warn().Msg("using in-memory order store, orders are lost on restart")
		return repository.NewMemoryRepository(), func() {}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repository.NewOrderRepository(pool, logger), pool.Close, nil
}

func loadCatalog(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (catalog.Catalog, error) {
	fileLoader := catalog.NewFileLoader(logger)

	var s3Loader catalog.Loader
	if cfg.S3.Enabled {
		l, err := catalog.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = l
		}
	} else {
		logger.Info().Msg("using local file system for catalog files (S3 disabled)")
	}

	loader := catalog.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, cfg.S3.Enabled, logger)
	return catalog.LoadAll(ctx, loader, cfg.Catalog.Paths, logger)
}

func newSender(cfg config.GatewayConfig, logger zerolog.Logger) messaging.Sender {
	if cfg.URL == "" {
		logger.Warn().Msg("chat gateway not configured, outbound messages are only logged")
		return messaging.NewLogSender(logger)
	}
	return messaging.NewGatewaySender(cfg.URL, cfg.Token, cfg.Timeout, logger)
}

func newPublisher(cfg config.AMQPConfig, logger zerolog.Logger) events.Publisher {
	if cfg.URL == "" {
		return events.NopPublisher{}
	}
	p, err := events.NewAMQPPublisher(cfg.URL, cfg.Exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("order event feed unavailable, continuing without it")
		return events.NopPublisher{}
	}
	return p
}

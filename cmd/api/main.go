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

	"github.com/angelmondragon/viylo-storefront/api/controllers"
	"github.com/angelmondragon/viylo-storefront/api/routes"
	"github.com/angelmondragon/viylo-storefront/internal/catalog"
	"github.com/angelmondragon/viylo-storefront/internal/checkout"
	"github.com/angelmondragon/viylo-storefront/internal/notifications"
	"github.com/angelmondragon/viylo-storefront/internal/orders"
	"github.com/angelmondragon/viylo-storefront/internal/payments"
	"github.com/angelmondragon/viylo-storefront/internal/storefront"
	"github.com/angelmondragon/viylo-storefront/internal/submission"
	"github.com/angelmondragon/viylo-storefront/pkg/config"
	"github.com/angelmondragon/viylo-storefront/pkg/db"
	"github.com/angelmondragon/viylo-storefront/pkg/instance"
	"github.com/angelmondragon/viylo-storefront/pkg/logger"
	"github.com/angelmondragon/viylo-storefront/pkg/metrics"
	"github.com/angelmondragon/viylo-storefront/pkg/migrate"
	"github.com/angelmondragon/viylo-storefront/pkg/pubsub"
	"github.com/angelmondragon/viylo-storefront/pkg/redis"
	"github.com/angelmondragon/viylo-storefront/pkg/square"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	closeAll := func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "error releasing resources", errs)
		}
	}
	defer closeAll()

	fail := func(msg string, err error) {
		logg.Error(ctx, msg, err)
		closeAll()
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{}
	deps := routes.Dependencies{Readiness: readiness}

	var archive orders.Archive
	if cfg.DB.Enabled() {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			fail("failed to bootstrap database", err)
		}
		closers = append(closers, dbClient.Close)
		readiness["database"] = dbClient

		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			fail("failed to run dev migrations", err)
		}

		repo, err := orders.NewRepository(dbClient.DB())
		if err != nil {
			fail("failed to create order archive", err)
		}
		archive = repo
		deps.Archive = repo
	} else {
		logg.Warn(ctx, "order archive disabled; sent orders are not persisted")
	}

	var guard submission.PendingGuard = submission.NewMemoryGuard()
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			fail("failed to bootstrap redis", err)
		}
		closers = append(closers, redisClient.Close)
		readiness["redis"] = redisClient
		deps.Idempotency = redisClient

		redisGuard, err := submission.NewRedisGuard(redisClient, cfg.Storefront.SubmissionLockTTL, logg)
		if err != nil {
			fail("failed to create submission guard", err)
		}
		guard = redisGuard
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)
	deps.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})

	notifier, err := buildNotifier(ctx, cfg, logg, readiness, &closers)
	if err != nil {
		fail("failed to create order notifier", err)
	}

	coordinator, err := submission.NewCoordinator(submission.Options{
		Notifier:    notifier,
		Guard:       guard,
		Archive:     archive,
		Destination: cfg.Storefront.OrderDestination,
		Timeout:     cfg.Storefront.NotifyTimeout,
		Metrics:     storefrontMetrics,
		Logger:      logg,
	})
	if err != nil {
		fail("failed to create submission coordinator", err)
	}

	loader := payments.NewLoader()
	if cfg.Square.Enabled() {
		loader.LoadAsync(ctx, func(ctx context.Context) (checkout.Collaborator, error) {
			client, err := square.NewClient(ctx, cfg.Square, logg)
			if err != nil {
				return nil, err
			}
			buttons, err := payments.NewSquareButtons(client, logg)
			if err != nil {
				return nil, err
			}
			return buttons, nil
		}, func(err error) {
			logg.Error(ctx, "payment collaborator failed to load", err)
		})
	} else {
		logg.Warn(ctx, "square credentials missing; payment widget will show the fallback")
	}

	cat := catalog.Default(cfg.Storefront.BaseCurrency)
	manager, err := storefront.NewManager(storefront.Config{
		Catalog:            cat,
		TaxRate:            cfg.Storefront.TaxRate,
		Rate:               cfg.Storefront.ConversionRate,
		PaymentCurrency:    cfg.Storefront.PaymentCurrency,
		PaymentDescription: cfg.Storefront.PaymentDescription,
		WidgetContainer:    cfg.Storefront.WidgetContainer,
		Resolver:           loader,
		Submitter:          coordinator,
		IdleTTL:            cfg.Storefront.SessionIdleTTL,
		Metrics:            storefrontMetrics,
		Logger:             logg,
	})
	if err != nil {
		fail("failed to create session manager", err)
	}
	closers = append(closers, func() error {
		manager.Close(context.Background())
		return nil
	})
	go manager.RunSweeper(ctx, sweepInterval)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"instance":      instance.GetID(),
		"notify_driver": notifier.Name(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, cat, manager, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail("api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(context.Background(), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}
}

func buildNotifier(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	closers *[]func() error,
) (notifications.Notifier, error) {
	switch cfg.Notify.NormalizedDriver() {
	case config.NotifyDriverEmailJS:
		return notifications.NewEmailJSNotifier(cfg.EmailJS, &http.Client{Timeout: cfg.Storefront.NotifyTimeout}, logg)

	case config.NotifyDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, client.Close)
		readiness["pubsub"] = client

		publisher, err := notifications.NewTopicPublisher(client.OrdersPublisher())
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func() error {
			publisher.Stop()
			return nil
		})
		return notifications.NewPubSubNotifier(publisher, logg)

	case config.NotifyDriverLog:
		return notifications.NewLogNotifier(logg)

	default:
		return nil, fmt.Errorf("unsupported notify driver %q", cfg.Notify.Driver)
	}
}

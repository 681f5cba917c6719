package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/render"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init attachment storage", zap.Error(err))
	}

	numbers, err := ticketnumber.NewGenerator(cfg.Tickets.NumberPrefix)
	if err != nil {
		logger.Fatal("invalid ticket number prefix", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	store := repository.NewPostgresStore(pg.PoolHandle())
	repos := store.Repos()
	dispatcher := events.NewInMemoryDispatcher(logger)

	notifier := notify.FromConfig(cfg.Notification, logger, metrics)
	var queue service.DeliveryQueue
	var deliveries *worker.NotificationWorker
	if notifier.Enabled() {
		lookup := func(ctx context.Context, id string) (*domain.User, error) {
			return repos.Users.GetByID(ctx, id)
		}
		deliveries = worker.NewNotificationWorker(notifier, lookup, logger, 4, 256)
		deliveries.Start(ctx)
		queue = deliveries
	}

	var cache service.UnreadCache
	if redis.Enabled() {
		cache = service.NewRedisUnreadCache(redis.Client)
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: repos.Users, Logger: logger})
	userService := service.NewUserService(*cfg, service.UserDependencies{UserRepo: repos.Users, Logger: logger})
	categoryService := service.NewCategoryService(repos.Categories, logger)
	ruleService := service.NewTriggerRuleService(service.TriggerRuleDependencies{
		RuleRepo:     repos.Rules,
		UserRepo:     repos.Users,
		CategoryRepo: repos.Categories,
		Logger:       logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: repos.Notifications,
		Cache:            cache,
		Queue:            queue,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	notificationService.RegisterHandlers()

	engine := lifecycle.New(lifecycle.Dependencies{
		Store:          store,
		Numbers:        numbers,
		Storage:        blobs,
		Admins:         userService,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Engine:   engine,
		Store:    store,
		Storage:  blobs,
		Renderer: render.New(),
	})
	dashboardService := service.NewDashboardService(repos.Tickets, notificationService, nil)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.Users)

	// Multipart framing needs headroom over the attachment cap.
	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Storage.MaxUploadBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	checks := map[string]handlers.Pinger{"postgres": pg, "redis": nil}
	if redis.Enabled() {
		checks["redis"] = redis
	}
	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Users:          handlers.NewUsersHandler(authService, userService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Catalog:        handlers.NewCatalogHandler(categoryService, ruleService),
		Notifications:  handlers.NewNotificationsHandler(notificationService, dashboardService),
		AuthMiddleware: authMiddleware,
	}
	if cfg.Metrics.Enabled {
		routes.MetricsPath = cfg.Metrics.Path
		routes.Registry = registry
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if deliveries != nil {
		deliveries.Stop()
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

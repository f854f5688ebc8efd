package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/field-service/internal/api/http"
	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/worker"
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		TaskRepo:       taskRepo,
		AssignmentRepo: assignmentRepo,
		CustomerRepo:   customerRepo,
		UserRepo:       userRepo,
		AuditRepo:      auditRepo,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	customerService := service.NewCustomerService(service.CustomerDependencies{
		CustomerRepo: customerRepo,
		TicketRepo:   ticketRepo,
		UserRepo:     userRepo,
		AuditRepo:    auditRepo,
		Logger:       logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
	})
	notificationService := service.NewNotificationService(dispatcher, userRepo, redis.Client, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Customers:      handlers.NewCustomersHandler(customerService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

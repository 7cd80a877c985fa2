package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/chorale-hq/chorale/internal/absences"
	"github.com/chorale-hq/chorale/internal/app"
	"github.com/chorale-hq/chorale/internal/attendance"
	"github.com/chorale-hq/chorale/internal/auth"
	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/events"
	"github.com/chorale-hq/chorale/internal/gigs"
	"github.com/chorale-hq/chorale/internal/members"
	"github.com/chorale-hq/chorale/internal/observability"
	"github.com/chorale-hq/chorale/internal/platform/db"
	"github.com/chorale-hq/chorale/internal/shared"
	"github.com/chorale-hq/chorale/internal/todos"
	"github.com/chorale-hq/chorale/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "chorale_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	catalogRepo := authz.NewRepository(pool)
	catalog := authz.NewCatalog(catalogRepo, redisClient, cfg.GrantsCacheTTL)
	if err := catalog.Validate(ctx); err != nil {
		logger.Error("validate permission catalog", slog.Any("error", err))
		os.Exit(1)
	}
	engine := authz.NewEngine(catalog)

	membersRepo := members.NewRepository(pool)
	membersService := members.NewService(membersRepo)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(membersService, catalog, authRepo)
	authzMiddleware := authz.Middleware{Engine: engine, Resolver: authService, Logger: logger}

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewNotifier(jobsClient, cfg.OfficerList)

	eventsRepo := events.NewRepository(pool)
	eventsService := events.NewService(eventsRepo, membersService, engine)

	absencesRepo := absences.NewRepository(pool)
	absencesService := absences.NewService(absencesRepo, eventsService, engine, notifier, logger)

	attendanceRepo := attendance.NewRepository(pool)
	attendanceService := attendance.NewService(attendanceRepo, eventsService, membersService, absencesService, engine)

	gigsRepo := gigs.NewRepository(pool)
	gigsService := gigs.NewService(gigsRepo, eventsService, db.NewRunner(pool), engine, notifier, logger)

	todosRepo := todos.NewRepository(pool)
	todosService := todos.NewService(todosRepo, membersService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       auth.NewHandler(logger, authService, sessionManager, csrfManager),
		MembersHandler:    members.NewHandler(logger, membersService, authzMiddleware),
		EventsHandler:     events.NewHandler(logger, eventsService, authzMiddleware),
		AttendanceHandler: attendance.NewHandler(logger, attendanceService, authzMiddleware),
		AbsencesHandler:   absences.NewHandler(logger, absencesService, eventsService, authzMiddleware),
		GigsHandler:       gigs.NewHandler(logger, gigsService, authzMiddleware),
		TodosHandler:      todos.NewHandler(logger, todosService, authzMiddleware),
		CatalogHandler:    authz.NewHandler(logger, catalog, authzMiddleware),
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/halqat/internal/config"
	"github.com/noah-isme/halqat/internal/database"
	"github.com/noah-isme/halqat/internal/handler"
	"github.com/noah-isme/halqat/internal/middleware"
	"github.com/noah-isme/halqat/internal/repository"
	"github.com/noah-isme/halqat/internal/router"
	"github.com/noah-isme/halqat/internal/service"
	"github.com/noah-isme/halqat/internal/views"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if !cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	location, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Info().Msg("redis not configured, quick stats are computed on every request")
	}

	validate := service.NewValidator()
	store := repository.NewStore(db)
	statsCache := service.NewStatsCache(redisClient, cfg.StatsCacheTTL, logger)

	seeded, err := service.NewSeedService(store, service.BootstrapAccount{
		Username: cfg.BootstrapUsername,
		Password: cfg.BootstrapPassword,
		FullName: cfg.BootstrapFullName,
	}, logger).EnsureProgrammer(context.Background())
	switch {
	case err == nil && seeded:
		logger.Info().Str("username", cfg.BootstrapUsername).Msg("bootstrap programmer account created")
	case err != nil && !errors.Is(err, service.ErrSeedDisabled):
		logger.Fatal().Err(err).Msg("failed to seed bootstrap account")
	}

	mutationDeps := service.MutationDeps{
		Store:     store,
		Validator: validate,
		Cache:     statsCache,
		Location:  location,
		Logger:    logger,
	}
	authService := service.NewAuthService(store.Users, validate, cfg.SessionSecret, cfg.SessionTTL, logger)
	listService := service.NewListService(store, statsCache, cfg.PageSize, location, logger)
	reportService := service.NewReportService(store.Reports, location, logger)
	activityService := service.NewActivityService(store.Activity, logger)

	pageDeps := handler.PageDeps{
		AppName:  cfg.AppName,
		Lists:    listService,
		Location: location,
		Logger:   logger,
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		Views:        views.New(),
		ErrorHandler: handler.ErrorHandler(cfg.AppName, logger),
	})

	middleware.Register(app, middleware.Config{Logger: &logger, Production: cfg.IsProduction()})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:   handler.NewAuthHandler(authService, activityService, cfg.AppName, cfg.IsProduction(), logger),
		ReportHandler: handler.NewReportHandler(reportService, pageDeps),
		Pages: []*handler.PageHandler{
			handler.NewHalaqatPage(pageDeps, service.NewHalqaService(mutationDeps)),
			handler.NewCoursesPage(pageDeps, service.NewCourseService(mutationDeps)),
			handler.NewStudentsPage(pageDeps, service.NewStudentService(mutationDeps)),
			handler.NewAttendancePage(pageDeps, service.NewAttendanceService(mutationDeps)),
			handler.NewGradesPage(pageDeps, service.NewGradeService(mutationDeps)),
			handler.NewUsersPage(pageDeps, service.NewUserService(mutationDeps)),
			handler.NewActivityPage(pageDeps),
		},
		Health:       handler.HealthCheck(cfg, db),
		Session:      middleware.Session(authService, logger),
		CSRF:         middleware.CSRF(cfg.IsProduction(), logger),
		LoginLimiter: middleware.LoginRateLimit(cfg.LoginRateLimit, time.Minute),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

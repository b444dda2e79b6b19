package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/auth"
	"github.com/mamadbah2/milkmatrix/internal/config"
	"github.com/mamadbah2/milkmatrix/internal/grading"
	"github.com/mamadbah2/milkmatrix/internal/repository/driver"
	"github.com/mamadbah2/milkmatrix/internal/repository/mongodb"
	"github.com/mamadbah2/milkmatrix/internal/repository/sheets"
	"github.com/mamadbah2/milkmatrix/internal/scheduler"
	"github.com/mamadbah2/milkmatrix/internal/server/handlers"
	"github.com/mamadbah2/milkmatrix/internal/server/router"
	cowsvc "github.com/mamadbah2/milkmatrix/internal/service/cows"
	healthsvc "github.com/mamadbah2/milkmatrix/internal/service/health"
	milksvc "github.com/mamadbah2/milkmatrix/internal/service/milk"
	notifysvc "github.com/mamadbah2/milkmatrix/internal/service/notify"
	reportingsvc "github.com/mamadbah2/milkmatrix/internal/service/reporting"
	usersvc "github.com/mamadbah2/milkmatrix/internal/service/users"
	"github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
	whatsappclient "github.com/mamadbah2/milkmatrix/pkg/clients/whatsapp"
	"github.com/mamadbah2/milkmatrix/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.String("timezone", cfg.Reporting.Timezone), zap.Error(err))
	}

	ctx := context.Background()

	store, err := driver.Open(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to open record store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close record store", zap.Error(err))
		}
	}()

	var sessionCache auth.Cache
	if cfg.Redis.Addr != "" {
		redisClient, err := auth.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			baseLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		sessionCache = auth.NewRedisCache(redisClient)
		baseLogger.Info("redis session cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	supabaseClient := supabase.NewClient(cfg.Supabase)

	milkSvc := milksvc.NewService(store, grading.NewEngine(grading.DefaultStandards), loc, baseLogger.Named("svc.milk"))
	healthSvc := healthsvc.NewService(store, baseLogger.Named("svc.health"))
	cowSvc := cowsvc.NewService(store, store, store, baseLogger.Named("svc.cows"))
	userSvc := usersvc.NewService(store, baseLogger.Named("svc.users"))
	authenticator := auth.NewAuthenticator(supabaseClient, auth.NewVerifier(cfg.Supabase.JWTSecret), sessionCache, userSvc, baseLogger.Named("auth"))

	var sheetsRepo sheets.Repository
	if cfg.Sheets.Enabled() {
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetsRepo = repo
	} else {
		baseLogger.Warn("google sheets credentials missing, daily report export disabled")
	}

	var archive reportingsvc.Archive
	switch {
	case cfg.Store.Driver == config.DriverMongoDB:
		archive, _ = store.(reportingsvc.Archive)
	case cfg.MongoDB.URI != "":
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, baseLogger.Named("repo.mongodb"))
		if err != nil {
			baseLogger.Fatal("failed to init mongodb report archive", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		archive = mongoRepo
	}

	reportingSvc := reportingsvc.NewService(milkSvc, healthSvc, sheetsRepo, archive, loc, baseLogger.Named("svc.reporting"))

	var notifier notifysvc.Notifier = notifysvc.Discard{Logger: baseLogger.Named("svc.notify")}
	if cfg.WhatsApp.Enabled() {
		notifier = notifysvc.NewWhatsAppNotifier(cfg.WhatsApp, whatsappclient.NewClient(cfg.WhatsApp), baseLogger.Named("svc.notify"))
	} else {
		baseLogger.Warn("whatsapp credentials missing, manager notifications disabled")
	}

	engine := router.New(router.Handlers{
		Auth:   handlers.NewAuthHandler(authenticator, userSvc, baseLogger.Named("handlers.auth")),
		Cows:   handlers.NewCowHandler(cowSvc, baseLogger.Named("handlers.cows")),
		Milk:   handlers.NewMilkHandler(milkSvc, reportingSvc, loc, baseLogger.Named("handlers.milk")),
		Health: handlers.NewHealthHandler(healthSvc, baseLogger.Named("handlers.health")),
	}, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Reporting, loc, reportingSvc, healthSvc, notifier, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-sigCtx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

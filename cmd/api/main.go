package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gw2armory/armory-back/internal/cache"
	"github.com/gw2armory/armory-back/internal/config"
	"github.com/gw2armory/armory-back/internal/handler"
	"github.com/gw2armory/armory-back/internal/integrations/gw2"
	"github.com/gw2armory/armory-back/internal/middleware"
	"github.com/gw2armory/armory-back/internal/models"
	"github.com/gw2armory/armory-back/internal/repository"
	"github.com/gw2armory/armory-back/internal/service"
	"github.com/gw2armory/armory-back/internal/utils"
	"github.com/gw2armory/armory-back/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const standingsCacheTTL = 5 * time.Minute

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := repository.RunMigrations(ctx, db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		logger.Fatalf("Invalid encryption key: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	gw2Client := gw2.NewClient(cfg, logger)
	sealer := utils.NewTokenSealer(key, cfg.HMACSecret)
	svc := service.NewService(repo, gw2Client, sealer, logger, cfg)

	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warnf("Standings cache disabled: %v", err)
		} else {
			defer rdb.Close()
			svc.WithCache(cache.NewViewCache[[]models.PvpStandings](rdb, standingsCacheTTL, logger))
		}
	}
	if cfg.EmailEnabled() {
		svc.WithNotifier(email.NewSender(cfg, logger))
	}

	scheduler := service.NewScheduler(svc, logger)
	if err := scheduler.Start(cfg.PvpSyncSchedule); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(logger))
	handler.NewHandler(svc, logger).Routes(r, middleware.AuthMiddleware(cfg))

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "armory-api"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Pvp standings sync still running at exit")
	}
}

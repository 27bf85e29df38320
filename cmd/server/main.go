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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unitstay/service-booking/internal/application"
	"github.com/unitstay/service-booking/internal/config"
	bookingDomain "github.com/unitstay/service-booking/internal/domain/booking"
	bookingEvents "github.com/unitstay/service-booking/internal/events"
	"github.com/unitstay/service-booking/internal/handler"
	"github.com/unitstay/service-booking/internal/platform/database"
	"github.com/unitstay/service-booking/internal/platform/health"
	"github.com/unitstay/service-booking/internal/platform/kafka"
	"github.com/unitstay/service-booking/internal/platform/logger"
	"github.com/unitstay/service-booking/internal/platform/middleware"
	"github.com/unitstay/service-booking/internal/repository"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("db_driver", cfg.DBConfig.Driver),
		zap.Bool("kafka_enabled", cfg.KafkaConfig.Enabled),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.IsDevelopment() || cfg.DBConfig.Driver == database.DriverSQLite {
		if err := db.AutoMigrate(&repository.BookingModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize event publisher
	var publisher interface {
		application.EventPublisher
		Close() error
	}
	if cfg.KafkaConfig.Enabled {
		publisher = kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	} else {
		publisher = kafka.NewNopProducer(log)
	}
	defer func() { _ = publisher.Close() }()

	// Initialize booking policy
	var policyOpts []bookingDomain.PolicyOption
	if cfg.PolicyConfig.OverlapFailOpen {
		log.Warn("overlap lookups fail open: store errors will admit bookings")
		policyOpts = append(policyOpts, bookingDomain.WithOverlapFailOpen(func(unitID string, err error) {
			log.Warn("overlap lookup failed, treating unit as available",
				zap.String("unit_id", unitID),
				zap.Error(err),
			)
		}))
	}
	policy := bookingDomain.NewPolicy(policyOpts...)

	// Initialize application service
	bookingRepo := repository.NewGormBookingRepository(db)
	bookingService := application.NewBookingService(bookingRepo, policy, publisher, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize and start booking command consumer in a goroutine
	if cfg.KafkaConfig.Enabled {
		groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
		commandConsumer := bookingEvents.NewExtensionCommandConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			bookingService,
			log,
		)
		defer func() { _ = commandConsumer.Close() }()

		go func() {
			log.Info("starting booking command consumer")
			if err := commandConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking command consumer error", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimitConfig.RPS, cfg.RateLimitConfig.Burst, log))

	// Register health check routes
	healthHandler := health.NewHandler(db, serviceName, log)
	healthHandler.RegisterRoutes(router)

	// Register routes
	bookingHandler.RegisterRoutes(&router.RouterGroup)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("service-booking stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/servilink/service-booking/internal/adapter"
	"github.com/servilink/service-booking/internal/application"
	bookingEvents "github.com/servilink/service-booking/internal/events"
	"github.com/servilink/service-booking/internal/handler"
	"github.com/servilink/service-booking/internal/platform/auth"
	"github.com/servilink/service-booking/internal/platform/config"
	"github.com/servilink/service-booking/internal/platform/database"
	"github.com/servilink/service-booking/internal/platform/health"
	"github.com/servilink/service-booking/internal/platform/kafka"
	"github.com/servilink/service-booking/internal/platform/lock"
	"github.com/servilink/service-booking/internal/platform/logger"
	"github.com/servilink/service-booking/internal/platform/middleware"
	"github.com/servilink/service-booking/internal/repository"
	"github.com/servilink/service-booking/internal/saga"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-booking",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DB, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.PaymentModel{},
			&repository.PlatformConfigModel{},
			&repository.ProviderEarningsModel{},
			&repository.EarningsEntryModel{},
			&repository.ServiceModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DB.URL(), "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, 15*time.Minute)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, zapLogger)
	defer kafkaProducer.Close()

	// Initialize payment gateway adapter
	var gateway adapter.GatewayAdapter
	if cfg.Gateway.UseMock {
		gateway = adapter.NewMockGatewayAdapter(cfg.Gateway.KeySecret, zapLogger)
		zapLogger.Warn("using mock payment gateway")
	} else {
		gateway = adapter.NewHTTPGatewayAdapter(
			cfg.Gateway.BaseURL,
			cfg.Gateway.KeyID,
			cfg.Gateway.KeySecret,
			cfg.Gateway.Timeout,
			zapLogger,
		)
	}

	// Initialize repositories
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	configRepo := repository.NewPlatformConfigRepository(db)
	earningsRepo := repository.NewEarningsRepository(db)
	serviceRepo := repository.NewServiceRepository(db)

	// Per-booking locks shared by every workflow that mutates a booking
	locks := lock.NewKeyedMutex()

	// Initialize saga service
	sagaService := saga.NewPaymentSagaService(
		paymentRepo, bookingRepo, gateway, kafkaProducer, locks,
		cfg.Gateway.Currency, zapLogger,
	)

	// Initialize application services
	bookingService := application.NewBookingService(
		bookingRepo, paymentRepo, serviceRepo, configRepo, earningsRepo,
		kafkaProducer, locks, cfg.Gateway.Currency, zapLogger,
	)
	paymentService := application.NewPaymentService(
		paymentRepo, bookingRepo, gateway, sagaService,
		kafkaProducer, locks, cfg.Gateway.KeyID, zapLogger,
	)
	earningsService := application.NewEarningsService(earningsRepo, bookingRepo, zapLogger)
	configService := application.NewConfigService(configRepo, zapLogger)

	// Initialize Kafka consumer for catalog events
	consumerGroupID := cfg.Kafka.GroupPrefix + "booking-service"
	catalogConsumer := bookingEvents.NewCatalogEventConsumer(
		cfg.Kafka.Brokers,
		consumerGroupID,
		serviceRepo,
		zapLogger,
	)
	defer catalogConsumer.Close()

	// Start Kafka consumer in a goroutine
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting catalog event consumer")
		if err := catalogConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("catalog event consumer failed", zap.Error(err))
			}
		}
	}()

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	earningsHandler := handler.NewEarningsHandler(earningsService)
	adminHandler := handler.NewAdminHandler(paymentService, configService, earningsService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register API routes
	apiV1 := router.Group("/api/v1")
	bookingHandler.RegisterRoutes(apiV1, jwtManager)
	paymentHandler.RegisterRoutes(apiV1, jwtManager)
	earningsHandler.RegisterRoutes(apiV1, jwtManager)
	adminHandler.RegisterRoutes(apiV1, jwtManager)

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
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-booking...")

	// Cancel Kafka consumer
	consumerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-booking stopped")
}

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
	"github.com/motobiketours/service-booking/internal/application"
	"github.com/motobiketours/service-booking/internal/config"
	bookingDomain "github.com/motobiketours/service-booking/internal/domain/booking"
	bookingEvents "github.com/motobiketours/service-booking/internal/events"
	"github.com/motobiketours/service-booking/internal/gateway/stripe"
	"github.com/motobiketours/service-booking/internal/gateway/vnpay"
	"github.com/motobiketours/service-booking/internal/handler"
	"github.com/motobiketours/service-booking/internal/invoice"
	"github.com/motobiketours/service-booking/internal/notification"
	"github.com/motobiketours/service-booking/internal/platform/auth"
	"github.com/motobiketours/service-booking/internal/platform/database"
	"github.com/motobiketours/service-booking/internal/platform/health"
	"github.com/motobiketours/service-booking/internal/platform/kafka"
	"github.com/motobiketours/service-booking/internal/platform/logger"
	"github.com/motobiketours/service-booking/internal/platform/middleware"
	"github.com/motobiketours/service-booking/internal/platform/telemetry"
	"github.com/motobiketours/service-booking/internal/repository"
	"github.com/motobiketours/service-booking/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
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
		zap.String("env", cfg.AppEnv),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		ServiceName:   serviceName,
		Environment:   cfg.AppEnv,
		CollectorAddr: cfg.Telemetry.CollectorAddr,
		SampleRatio:   cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" && cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(&repository.TourModel{}, &repository.BookingModel{}, &repository.PaymentModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), cfg.DB.MigrationsDir, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer)

	// Initialize payment gateways
	vnpayClient, err := vnpay.NewClient(vnpay.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		PaymentURL: cfg.VNPay.PaymentURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
	})
	if err != nil {
		log.Fatal("failed to create VNPay client", zap.Error(err))
	}

	var stripeGateway application.StripeGateway
	if cfg.Stripe.Enabled() {
		stripeClient, err := stripe.NewClient(stripe.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			SuccessURL:    cfg.FrontendURL + "/booking/success",
			CancelURL:     cfg.FrontendURL + "/booking/failed",
		})
		if err != nil {
			log.Fatal("failed to create Stripe client", zap.Error(err))
		}
		stripeGateway = stripeClient
	} else {
		log.Info("stripe disabled, card payments will be rejected")
	}

	// Initialize notifications
	var sender notification.Sender = notification.NewLogSender(log)
	if cfg.SMTP.Host != "" {
		mailer, err := notification.NewSMTPMailer(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log)
		if err != nil {
			log.Fatal("failed to create SMTP mailer", zap.Error(err))
		}
		sender = mailer
	}
	emailNotifier := notification.NewEmailNotifier(sender, log)

	var notifier application.Notifier = emailNotifier
	var notificationConsumer *bookingEvents.NotificationConsumer
	if cfg.Kafka.Enabled {
		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		notifier = bookingEvents.NewKafkaNotifier(kafkaProducer, cfg.Kafka.NotificationsTopic, log)

		groupID := cfg.Kafka.GroupPrefix + "booking-notifications"
		notificationConsumer = bookingEvents.NewNotificationConsumer(
			cfg.Kafka.Brokers,
			groupID,
			cfg.Kafka.NotificationsTopic,
			emailNotifier,
			log,
		)
		defer func() { _ = notificationConsumer.Close() }()
	}

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	tourCatalog := repository.NewGormTourCatalog(db)
	transactor := repository.NewGormTransactor(db)

	// Initialize application services
	bookingService := application.NewBookingService(
		bookingRepo,
		tourCatalog,
		bookingDomain.NewUnitPricePricingStrategy(),
		notifier,
		invoice.NewPDFRenderer("Motobike Tours"),
		application.BookingPolicy{
			HoldTTL:            cfg.Booking.HoldTTL,
			CancellationCutoff: cfg.Booking.CancellationCutoff,
		},
		log,
	)
	paymentService := application.NewPaymentService(
		bookingRepo,
		paymentRepo,
		tourCatalog,
		transactor,
		vnpayClient,
		stripeGateway,
		notifier,
		log,
	)

	healthHandler := health.NewHandler(db, serviceName)

	// Initialize the expiry sweeper, leased through Redis when several replicas run
	var lease worker.Lease
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
		lease = worker.NewRedisLease(redisClient, serviceName+":expiry-sweep")
		healthHandler.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	sweeper := worker.NewExpirySweeper(bookingService, lease, cfg.Booking.SweepInterval, log)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("failed to start expiry sweeper", zap.Error(err))
	}

	if notificationConsumer != nil {
		go func() {
			log.Info("starting notification consumer")
			if err := notificationConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notification consumer error", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService, bookingService)
	paymentHandler := handler.NewPaymentHandler(paymentService, cfg.FrontendURL, log)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins...))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler.RegisterRoutes(router)

	// Register routes
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	paymentHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      telemetry.WrapHandler(router, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Stop background work before closing connections
	cancel()
	sweeper.Stop()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("failed to flush traces", zap.Error(err))
	}

	log.Info("service-booking stopped")
}

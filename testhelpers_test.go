//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/motobiketours/service-booking/internal/application"
	bookingDomain "github.com/motobiketours/service-booking/internal/domain/booking"
	"github.com/motobiketours/service-booking/internal/gateway/vnpay"
	"github.com/motobiketours/service-booking/internal/platform/database"
	"github.com/motobiketours/service-booking/internal/platform/kafka"
	"github.com/motobiketours/service-booking/internal/repository"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testVNPaySecret    = "INTEGRATIONSECRET"
	notificationsTopic = "booking.notifications"
	testTourPriceCents = 150000000
	testTourCurrency   = "VND"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Redis        *redis.Client
	Cleanup      func()
}

// bookingStack holds wired-up booking and payment services.
type bookingStack struct {
	Bookings *application.BookingService
	Payments *application.PaymentService
	Repo     *repository.GormBookingRepository
	Notifier *recordingNotifier
}

// recordingNotifier accepts every notification.
type recordingNotifier struct {
	mock.Mock
}

func (n *recordingNotifier) SendBookingConfirmation(ctx context.Context, b application.BookingDTO) error {
	return n.Called(ctx, b).Error(0)
}

func (n *recordingNotifier) SendBookingCancellation(ctx context.Context, b application.BookingDTO) error {
	return n.Called(ctx, b).Error(0)
}

func (n *recordingNotifier) SendPaymentSuccess(ctx context.Context, b application.BookingDTO) error {
	return n.Called(ctx, b).Error(0)
}

type noInvoices struct{}

func (noInvoices) Render(application.BookingDTO) ([]byte, error) { return []byte("%PDF-"), nil }

// setupContainers starts PostgreSQL, Kafka and Redis testcontainers and
// returns a migrated GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pgConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_booking",
		SSLMode:  "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(pgConfig, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(pgConfig.DatabaseURL(), "migrations", logger))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, notificationsTopic)

	// Start Redis for the sweep lease.
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)
	redisClient := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(redisHost, redisPort.Port())})

	cleanup := func() {
		_ = redisClient.Close()
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Redis:        redisClient,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires the services onto the GORM repositories.
func setupBookingStack(t *testing.T, db *gorm.DB, opts ...application.Option) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	tours := repository.NewGormTourCatalog(db)
	notifier := &recordingNotifier{}
	notifier.On("SendBookingConfirmation", mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier.On("SendBookingCancellation", mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier.On("SendPaymentSuccess", mock.Anything, mock.Anything).Return(nil).Maybe()

	vnpayClient, err := vnpay.NewClient(vnpay.Config{
		TmnCode:    "INTTEST1",
		HashSecret: testVNPaySecret,
		ReturnURL:  "http://localhost:8082/api/v1/payments/vnpay/callback",
	})
	require.NoError(t, err)

	bookingSvc := application.NewBookingService(
		bookingRepo,
		tours,
		bookingDomain.NewUnitPricePricingStrategy(),
		notifier,
		noInvoices{},
		application.DefaultBookingPolicy(),
		logger,
		opts...,
	)
	paymentSvc := application.NewPaymentService(
		bookingRepo,
		paymentRepo,
		tours,
		repository.NewGormTransactor(db),
		vnpayClient,
		nil,
		notifier,
		logger,
		opts...,
	)

	return &bookingStack{
		Bookings: bookingSvc,
		Payments: paymentSvc,
		Repo:     bookingRepo,
		Notifier: notifier,
	}
}

// seedTour inserts a catalog tour.
func seedTour(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	model := repository.TourModel{
		ID:         uuid.New(),
		Title:      "Ha Giang Loop 4 days",
		PriceCents: testTourPriceCents,
		Currency:   testTourCurrency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed tour")
	return model.ID
}

// createBooking books the tour for two people starting in ten days.
func createBooking(t *testing.T, svc *application.BookingService, tourID uuid.UUID) *application.BookingDTO {
	t.Helper()
	dto, err := svc.CreateBooking(context.Background(), uuid.New(), application.CreateBookingRequest{
		TourID:         tourID,
		StartDate:      time.Now().AddDate(0, 0, 10).Format(time.DateOnly),
		NumberOfPeople: 2,
		PaymentMethod:  "vnpay",
		CustomerInfo: bookingDomain.CustomerInfo{
			Name:  "Nguyen Van A",
			Email: "a@example.com",
			Phone: "0901234567",
		},
	})
	require.NoError(t, err)
	return dto
}

// signedCallback builds VNPay return-URL parameters signed with the test secret.
func signedCallback(bookingID uuid.UUID, code string, amountCents int64) map[string]string {
	params := map[string]string{
		vnpay.ParamTxnRef:        bookingID.String(),
		vnpay.ParamResponseCode:  code,
		vnpay.ParamTransactionNo: "14422574",
		vnpay.ParamAmount:        fmt.Sprintf("%d", amountCents),
		"vnp_BankCode":           "NCB",
	}
	_, hash := vnpay.Sign(params, testVNPaySecret)
	params[vnpay.ParamSecureHash] = hash
	return params
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}

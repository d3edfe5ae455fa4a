package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every variable read by this service.
const EnvPrefix = "BOOKING"

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	FrontendURL string
	CORSOrigins []string

	DB        DatabaseConfig
	JWT       JWTConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	VNPay     VNPayConfig
	Stripe    StripeConfig
	SMTP      SMTPConfig
	Booking   BookingConfig
	Telemetry TelemetryConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// AutoMigrate runs GORM auto-migration instead of the SQL migrations (development only).
	AutoMigrate   bool
	MigrationsDir string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type KafkaConfig struct {
	Brokers            []string
	GroupPrefix        string
	NotificationsTopic string
	// Enabled switches notifications from direct SMTP to the Kafka pipeline.
	Enabled bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PaymentURL string
	ReturnURL  string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// Enabled reports whether Stripe credentials are configured.
func (s StripeConfig) Enabled() bool {
	return s.SecretKey != "" && s.WebhookSecret != ""
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// BookingConfig holds the lifecycle timings.
type BookingConfig struct {
	HoldTTL            time.Duration
	CancellationCutoff time.Duration
	SweepInterval      time.Duration
}

type TelemetryConfig struct {
	Enabled       bool
	CollectorAddr string
	SampleRatio   float64
}

// Load reads configuration from an optional .env file and BOOKING_* environment variables.
func Load() (*ServiceConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:        v.GetString("SERVICE_PORT"),
		AppEnv:      v.GetString("APP_ENV"),
		FrontendURL: strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		DB: DatabaseConfig{
			Host:          v.GetString("DB_HOST"),
			Port:          v.GetString("DB_PORT"),
			User:          v.GetString("DB_USER"),
			Password:      v.GetString("DB_PASSWORD"),
			DBName:        v.GetString("DB_NAME"),
			SSLMode:       v.GetString("DB_SSLMODE"),
			AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
			MigrationsDir: v.GetString("DB_MIGRATIONS_DIR"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix:        v.GetString("KAFKA_GROUP_PREFIX"),
			NotificationsTopic: v.GetString("KAFKA_NOTIFICATIONS_TOPIC"),
			Enabled:            v.GetBool("KAFKA_ENABLED"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		VNPay: VNPayConfig{
			TmnCode:    v.GetString("VNPAY_TMN_CODE"),
			HashSecret: v.GetString("VNPAY_HASH_SECRET"),
			PaymentURL: v.GetString("VNPAY_URL"),
			ReturnURL:  v.GetString("VNPAY_RETURN_URL"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Booking: BookingConfig{
			HoldTTL:            v.GetDuration("HOLD_TTL"),
			CancellationCutoff: v.GetDuration("CANCELLATION_CUTOFF"),
			SweepInterval:      v.GetDuration("SWEEP_INTERVAL"),
		},
		Telemetry: TelemetryConfig{
			Enabled:       v.GetBool("OTEL_ENABLED"),
			CollectorAddr: v.GetString("OTEL_COLLECTOR_ADDR"),
			SampleRatio:   v.GetFloat64("OTEL_SAMPLE_RATIO"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", ":8082")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "motobike_bookings")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MIGRATIONS_DIR", "migrations")

	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "motobike-")
	v.SetDefault("KAFKA_NOTIFICATIONS_TOPIC", "booking.notifications")

	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("VNPAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")

	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "Motobike Tours <no-reply@motobiketours.local>")

	v.SetDefault("HOLD_TTL", 30*time.Minute)
	v.SetDefault("CANCELLATION_CUTOFF", 24*time.Hour)
	v.SetDefault("SWEEP_INTERVAL", time.Minute)

	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
}

// Validate rejects configurations the service cannot run with.
func (c *ServiceConfig) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("BOOKING_JWT_SECRET is required"))
	}
	if c.VNPay.TmnCode == "" || c.VNPay.HashSecret == "" {
		errs = append(errs, errors.New("BOOKING_VNPAY_TMN_CODE and BOOKING_VNPAY_HASH_SECRET are required"))
	}
	if c.VNPay.ReturnURL == "" {
		errs = append(errs, errors.New("BOOKING_VNPAY_RETURN_URL is required"))
	}
	if (c.Stripe.SecretKey == "") != (c.Stripe.WebhookSecret == "") {
		errs = append(errs, errors.New("BOOKING_STRIPE_SECRET_KEY and BOOKING_STRIPE_WEBHOOK_SECRET must be set together"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("BOOKING_KAFKA_BROKERS is required when Kafka is enabled"))
	}
	if c.Booking.HoldTTL <= 0 || c.Booking.SweepInterval <= 0 || c.Booking.CancellationCutoff < 0 {
		errs = append(errs, errors.New("booking timings must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Faraz011/Hindustan-Bills-sub001/database"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	awspkg "github.com/Faraz011/Hindustan-Bills-sub001/pkg/aws"
	"github.com/joho/godotenv"
)

const (
	TransportSQS   = "sqs"
	TransportKafka = "kafka"
	TransportNone  = "none"

	// CredentialsSecret holds channel credentials when AWS_USE_SECRETS=true.
	CredentialsSecret = "notification/CHANNEL_CREDENTIALS"
)

type Config struct {
	Port   string
	AppEnv string

	TelegramBotToken string
	TelegramAPIBase  string
	ChatRatePerSec   float64

	EmailAPIKey  string
	EmailAPIBase string
	EmailFrom    string

	DefaultChatDestination string
	DefaultEmailRecipient  string
	ShopChannels           map[string]models.ChannelConfig

	InvoiceBasePath string
	InvoiceS3Bucket string

	ChannelTimeout time.Duration
	NotifyLocation *time.Location

	EventTransport string
	SQSQueueURL    string
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaGroupID   string

	RedisURL           string
	CompletionGuardTTL time.Duration

	Postgres database.PostgresConfig

	InternalAPIToken string

	CloudWatchLogGroup     string
	CloudWatchMetrics      bool
	CloudWatchMetricsSpace string

	UseSecrets bool
}

// Load reads .env (if present) and the process environment. Only malformed
// values are errors; missing credentials leave their channel skipped.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:   getEnv("PORT", "8093"),
		AppEnv: getEnv("APP_ENV", "development"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBase:  getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),

		EmailAPIKey:  os.Getenv("EMAIL_API_KEY"),
		EmailAPIBase: getEnv("EMAIL_API_BASE", "https://api.resend.com"),
		EmailFrom:    os.Getenv("EMAIL_FROM"),

		DefaultChatDestination: os.Getenv("CHAT_DEFAULT_DESTINATION"),
		DefaultEmailRecipient:  os.Getenv("EMAIL_DEFAULT_RECIPIENT"),

		InvoiceBasePath: getEnv("INVOICE_BASE_PATH", "./invoices"),
		InvoiceS3Bucket: os.Getenv("INVOICE_S3_BUCKET"),

		EventTransport: strings.ToLower(getEnv("EVENT_TRANSPORT", TransportNone)),
		SQSQueueURL:    getEnv("SQS_QUEUE_URL", os.Getenv("NOTIFICATION_SQS_QUEUE_URL")),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "order.completed"),
		KafkaGroupID:   getEnv("KAFKA_GROUP_ID", "notification-service"),

		RedisURL: os.Getenv("REDIS_URL"),

		Postgres: database.PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),
		},

		InternalAPIToken: os.Getenv("INTERNAL_API_TOKEN"),

		CloudWatchLogGroup:     os.Getenv("CLOUDWATCH_LOG_GROUP"),
		CloudWatchMetrics:      os.Getenv("CLOUDWATCH_METRICS_ENABLED") == "true",
		CloudWatchMetricsSpace: getEnv("CLOUDWATCH_NAMESPACE", "HindustanBills"),

		UseSecrets: os.Getenv("AWS_USE_SECRETS") == "true",
	}

	var err error
	if cfg.ChannelTimeout, err = getDuration("CHANNEL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CompletionGuardTTL, err = getDuration("COMPLETION_GUARD_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if raw := os.Getenv("CHAT_RATE_PER_SEC"); raw != "" {
		if cfg.ChatRatePerSec, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, fmt.Errorf("CHAT_RATE_PER_SEC: %w", err)
		}
	}
	if cfg.NotifyLocation, err = time.LoadLocation(getEnv("NOTIFY_TIMEZONE", "Asia/Kolkata")); err != nil {
		return nil, fmt.Errorf("NOTIFY_TIMEZONE: %w", err)
	}
	if cfg.ShopChannels, err = parseShopChannels(os.Getenv("SHOP_CHANNELS")); err != nil {
		return nil, err
	}

	switch cfg.EventTransport {
	case TransportNone:
	case TransportSQS:
		if cfg.SQSQueueURL == "" {
			return nil, fmt.Errorf("SQS_QUEUE_URL is required when EVENT_TRANSPORT=sqs")
		}
	case TransportKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS is required when EVENT_TRANSPORT=kafka")
		}
	default:
		return nil, fmt.Errorf("unsupported EVENT_TRANSPORT %q", cfg.EventTransport)
	}
	return cfg, nil
}

// ApplySecrets overrides credentials from the JSON secret. Absent keys keep
// their environment value.
func (c *Config) ApplySecrets(ctx context.Context, getter awspkg.SecretGetter) error {
	m, err := awspkg.GetSecretMap(ctx, getter, CredentialsSecret)
	if err != nil {
		return err
	}
	override := func(dst *string, key string) {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
	override(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	override(&c.EmailAPIKey, "EMAIL_API_KEY")
	override(&c.InternalAPIToken, "INTERNAL_API_TOKEN")
	override(&c.Postgres.User, "POSTGRES_USER")
	override(&c.Postgres.Password, "POSTGRES_PASSWORD")
	override(&c.Postgres.Host, "POSTGRES_HOST")
	return nil
}

// DefaultChannels is the config served for shops absent from SHOP_CHANNELS.
func (c *Config) DefaultChannels() models.ChannelConfig {
	return models.ChannelConfig{
		ChatDestination: c.DefaultChatDestination,
		EmailRecipient:  c.DefaultEmailRecipient,
	}
}

func parseShopChannels(raw string) (map[string]models.ChannelConfig, error) {
	shops := map[string]models.ChannelConfig{}
	if strings.TrimSpace(raw) == "" {
		return shops, nil
	}
	if err := json.Unmarshal([]byte(raw), &shops); err != nil {
		return nil, fmt.Errorf("SHOP_CHANNELS must be a JSON object keyed by shop id: %w", err)
	}
	return shops, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

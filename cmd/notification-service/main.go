package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/config"
	"github.com/Faraz011/Hindustan-Bills-sub001/consumer"
	"github.com/Faraz011/Hindustan-Bills-sub001/controllers"
	"github.com/Faraz011/Hindustan-Bills-sub001/database"
	"github.com/Faraz011/Hindustan-Bills-sub001/guard"
	"github.com/Faraz011/Hindustan-Bills-sub001/invoice"
	"github.com/Faraz011/Hindustan-Bills-sub001/logger"
	"github.com/Faraz011/Hindustan-Bills-sub001/metrics"
	"github.com/Faraz011/Hindustan-Bills-sub001/middleware"
	awspkg "github.com/Faraz011/Hindustan-Bills-sub001/pkg/aws"
	"github.com/Faraz011/Hindustan-Bills-sub001/repository"
	"github.com/Faraz011/Hindustan-Bills-sub001/routes"
	"github.com/Faraz011/Hindustan-Bills-sub001/sender"
	"github.com/Faraz011/Hindustan-Bills-sub001/services"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "notification-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	ctx := context.Background()
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)

	var cwWriter io.Writer
	if cfg.CloudWatchLogGroup != "" && awsErr == nil {
		if w, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName); err == nil {
			cwWriter = w
		}
	}

	log, err := logger.New(cfg.AppEnv, cwWriter)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if awsErr != nil {
		log.Warn("AWS config unavailable, AWS integrations disabled", zap.Error(awsErr))
	}
	if cfg.UseSecrets && awsErr == nil {
		if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			log.Warn("Secrets Manager override failed, using environment", zap.Error(err))
		}
	}
	if cfg.TelegramBotToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN not set, chat alerts will be skipped")
	}
	if cfg.EmailAPIKey == "" || cfg.EmailFrom == "" {
		log.Warn("EMAIL_API_KEY or EMAIL_FROM not set, invoice emails will be skipped")
	}
	if cfg.InternalAPIToken == "" {
		log.Warn("INTERNAL_API_TOKEN not set, HTTP intake will reject every request")
	}

	// Channel configs
	static := repository.NewStaticChannelConfigStore(cfg.ShopChannels, cfg.DefaultChannels())
	var configs repository.ChannelConfigStore = static
	var writer repository.ChannelConfigWriter
	var db *gorm.DB
	if cfg.Postgres.Enabled() {
		db, err = database.Connect(cfg.Postgres, log)
		if err != nil {
			log.Fatal("DB connection failed", zap.Error(err))
		}
		writer = repository.NewGormChannelConfigStore(db, static)
		configs = writer
	}

	completion := newGuard(ctx, cfg, log)

	// Invoice assets
	var assets invoice.AssetStore = invoice.NewFileStore(cfg.InvoiceBasePath)
	if cfg.InvoiceS3Bucket != "" && awsErr == nil {
		assets = invoice.NewS3Store(awspkg.NewS3Client(awsCfg), cfg.InvoiceS3Bucket)
	}

	// Metrics
	var metricsClient *awspkg.MetricsClient
	if awsErr == nil {
		metricsClient = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchMetricsSpace, cfg.CloudWatchMetrics)
	}
	recorder := metrics.Multi{
		metrics.NewPromRecorder(prometheus.DefaultRegisterer),
		metrics.NewCloudWatchRecorder(metricsClient),
	}

	adapters := []sender.ChannelAdapter{
		sender.NewChatPushAdapter(sender.ChatPushConfig{
			APIBase:       cfg.TelegramAPIBase,
			BotToken:      cfg.TelegramBotToken,
			Timeout:       cfg.ChannelTimeout,
			RatePerSecond: cfg.ChatRatePerSec,
			Location:      cfg.NotifyLocation,
		}, log),
		sender.NewEmailAdapter(sender.EmailConfig{
			APIBase: cfg.EmailAPIBase,
			APIKey:  cfg.EmailAPIKey,
			From:    cfg.EmailFrom,
			Timeout: cfg.ChannelTimeout,
		}, assets, log),
	}

	// Dependency injection
	dispatcher := services.NewDispatcher(adapters, cfg.ChannelTimeout, recorder, log)
	notificationService := services.NewNotificationService(configs, completion, dispatcher, log)
	notificationController := controllers.NewNotificationController(notificationService, configs, writer, log)

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	stopConsumer := startConsumer(consumerCtx, cfg, awsCfg, awsErr, notificationService, log)

	// Router
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(log))
	r.Use(middleware.CloudWatchMetrics(metricsClient, serviceName))
	r.Use(middleware.RequestTimeout(30 * time.Second))
	r.Use(apperrors.ErrorMiddleware())
	routes.RegisterRoutes(r, notificationController, cfg.InternalAPIToken)

	// HTTP server
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("Notification service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	consumerCancel()
	stopConsumer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		log.Error("Database close error", zap.Error(err))
	}
	log.Info("Notification service stopped")
}

func newGuard(ctx context.Context, cfg *config.Config, log *zap.Logger) guard.CompletionGuard {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, using in-memory completion guard")
		return guard.NewMemoryGuard(cfg.CompletionGuardTTL)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := guard.NewRedisClient(pingCtx, cfg.RedisURL)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory completion guard", zap.Error(err))
		return guard.NewMemoryGuard(cfg.CompletionGuardTTL)
	}
	log.Info("Connected to Redis")
	return guard.NewRedisGuard(client, cfg.CompletionGuardTTL)
}

// startConsumer launches the configured queue intake and returns a func that
// waits for it to drain.
func startConsumer(ctx context.Context, cfg *config.Config, awsCfg sdkaws.Config, awsErr error, svc services.NotificationService, log *zap.Logger) func() {
	done := make(chan struct{})
	switch cfg.EventTransport {
	case config.TransportSQS:
		if awsErr != nil {
			log.Fatal("Failed to init SQS consumer", zap.Error(awsErr))
		}
		c := consumer.NewSQSConsumer(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL, svc, log)
		go func() {
			defer close(done)
			c.Start(ctx)
		}()
	case config.TransportKafka:
		c := consumer.NewKafkaConsumer(consumer.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID), svc, log)
		go func() {
			defer close(done)
			c.Start(ctx)
			if err := c.Close(); err != nil {
				log.Error("Kafka reader close error", zap.Error(err))
			}
		}()
	default:
		log.Info("No queue transport configured, HTTP intake only")
		close(done)
	}
	return func() {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Warn("consumer did not stop in time")
		}
	}
}

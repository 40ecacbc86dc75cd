package database

import (
	"fmt"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresConfig carries the POSTGRES_* settings. An empty User disables the
// database and the service runs on static channel configs.
type PostgresConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
	TimeZone string
	Attempts int
}

func (c PostgresConfig) Enabled() bool {
	return c.User != ""
}

func (c PostgresConfig) DSN() string {
	host, port, ssl, tz := c.Host, c.Port, c.SSLMode, c.TimeZone
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	if tz == "" {
		tz = "Asia/Kolkata"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		host, c.User, c.Password, c.DBName, port, ssl, tz,
	)
}

// Connect opens the pool with linear backoff and migrates shop_channels.
func Connect(cfg PostgresConfig, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD not set")
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("POSTGRES_DB not set")
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 10
	}

	var db *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
		if err == nil {
			if sqlDB, poolErr := db.DB(); poolErr == nil {
				sqlDB.SetMaxOpenConns(10)
				sqlDB.SetMaxIdleConns(2)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}
			logger.Info("Connected to PostgreSQL successfully")

			if err := db.AutoMigrate(&models.ShopChannel{}); err != nil {
				return nil, fmt.Errorf("AutoMigrate failed: %w", err)
			}
			return db, nil
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		time.Sleep(time.Duration(i+1) * 2 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

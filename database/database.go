package database

import (
	"context"
	"fmt"
	"time"

	"chthabserver/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	maxRetries    = 3
	retryInterval = 5 * time.Second
)

// DSN builds the Postgres connection string from config.
func DSN(config models.Config) string {
	return fmt.Sprintf("host=%s user=%s dbname=%s password=%s sslmode=%s",
		config.DBHost, config.DBUser, config.DBName, config.DBPassword, config.DBSSLMode)
}

// InitPostgreSQL connects with retries and migrates the round archive.
func InitPostgreSQL(config models.Config, logger *zap.Logger) (*gorm.DB, error) {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		db, err := gorm.Open(postgres.Open(DSN(config)), &gorm.Config{})
		if err == nil {
			if err := Migrate(db); err != nil {
				return nil, err
			}
			logger.Info("Connected to PostgreSQL", zap.String("host", config.DBHost))
			return db, nil
		}
		lastErr = err
		logger.Error("Retrying database connection", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("connecting to database: %w", lastErr)
}

// Migrate creates or updates the tables the server owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.RoundRecord{}); err != nil {
		return fmt.Errorf("migrating round_records: %w", err)
	}
	return nil
}

// InitRedis connects to the configured Redis and checks it answers.
func InitRedis(ctx context.Context, config models.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		rdb.Close()
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.RedisAddr))
	return rdb, nil
}

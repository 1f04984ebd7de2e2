package utils

import (
	"context"
	"time"

	"chthabserver/chthab/database"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs one idle sweep.
type Sweeper interface {
	Sweep()
}

// CronCleaner schedules the idle reaper and the daily purge of archived rounds.
// The returned scheduler is already started; Stop it on shutdown.
func CronCleaner(sweepSpec string, reaper Sweeper, history database.RoundHistory, retention time.Duration, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(sweepSpec, reaper.Sweep); err != nil {
		return nil, err
	}

	// purge expired round history daily at 03:00
	if _, err := c.AddFunc("0 3 * * *", func() {
		PurgeHistory(context.Background(), history, retention, logger)
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

// PurgeHistory deletes archived rounds older than retention.
func PurgeHistory(ctx context.Context, history database.RoundHistory, retention time.Duration, logger *zap.Logger) {
	logger.Info("Purging round history", zap.Duration("retention", retention))
	n, err := history.Purge(ctx, time.Now().Add(-retention))
	if err != nil {
		logger.Error("Round history purge failed", zap.Error(err))
		return
	}
	logger.Info("Round history purged", zap.Int64("rows_deleted", n))
}

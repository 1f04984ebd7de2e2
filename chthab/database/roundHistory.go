package database

import (
	"context"
	"time"

	"chthabserver/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const historyQueueSize = 256

// RoundHistory archives started rounds. Record must never block.
type RoundHistory interface {
	Record(summary models.RoundSummary)
	Recent(ctx context.Context, roomCode string, limit int) ([]models.RoundRecord, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// GormRoundHistory writes summaries to Postgres from a single worker goroutine.
type GormRoundHistory struct {
	db     *gorm.DB
	queue  chan models.RoundSummary
	logger *zap.Logger
}

func NewGormRoundHistory(db *gorm.DB, logger *zap.Logger) *GormRoundHistory {
	return &GormRoundHistory{
		db:     db,
		queue:  make(chan models.RoundSummary, historyQueueSize),
		logger: logger,
	}
}

// Record queues summary for the worker, dropping it if the queue is full.
func (h *GormRoundHistory) Record(summary models.RoundSummary) {
	select {
	case h.queue <- summary:
	default:
		h.logger.Warn("Round history queue full, dropping summary", zap.String("roomCode", summary.RoomCode))
	}
}

// Run writes queued summaries until ctx is cancelled.
func (h *GormRoundHistory) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case summary := <-h.queue:
			rec := toRecord(summary)
			if err := h.db.WithContext(ctx).Create(&rec).Error; err != nil {
				h.logger.Error("Failed to archive round", zap.String("roomCode", summary.RoomCode), zap.Error(err))
			}
		}
	}
}

func (h *GormRoundHistory) Recent(ctx context.Context, roomCode string, limit int) ([]models.RoundRecord, error) {
	var records []models.RoundRecord
	err := h.db.WithContext(ctx).
		Where("room_code = ?", roomCode).
		Order("started_at desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (h *GormRoundHistory) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	result := h.db.WithContext(ctx).Where("started_at < ?", olderThan).Delete(&models.RoundRecord{})
	return result.RowsAffected, result.Error
}

func toRecord(s models.RoundSummary) models.RoundRecord {
	return models.RoundRecord{
		RoomCode:    s.RoomCode,
		Category:    s.Category,
		Location:    s.Location,
		PlayerCount: s.PlayerCount,
		StartedAt:   s.StartedAt,
	}
}

// NopRoundHistory is used when no database is configured.
type NopRoundHistory struct{}

func (NopRoundHistory) Record(models.RoundSummary) {}

func (NopRoundHistory) Recent(context.Context, string, int) ([]models.RoundRecord, error) {
	return nil, nil
}

func (NopRoundHistory) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}

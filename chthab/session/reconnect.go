package session

import (
	"sync"
	"time"

	"chthabserver/models"

	"go.uber.org/zap"
)

// DisconnectRecord remembers a dropped player for the length of the grace window.
type DisconnectRecord struct {
	ConnectionID   string
	Player         models.Player
	RoomCode       string
	DisconnectedAt time.Time

	timer Timer
}

// ReconnectBuffer holds dropped connections until they come back or their window expires.
type ReconnectBuffer struct {
	mu      sync.Mutex
	records map[string]*DisconnectRecord

	grace     time.Duration
	scheduler Scheduler
	clock     func() time.Time
	logger    *zap.Logger
}

func NewReconnectBuffer(grace time.Duration, scheduler Scheduler, clock func() time.Time, logger *zap.Logger) *ReconnectBuffer {
	return &ReconnectBuffer{
		records:   make(map[string]*DisconnectRecord),
		grace:     grace,
		scheduler: scheduler,
		clock:     clock,
		logger:    logger,
	}
}

// Hold buffers rec and calls expire once the grace window passes without a Cancel.
// A second Hold for the same connection replaces the first.
func (b *ReconnectBuffer) Hold(rec DisconnectRecord, expire func(DisconnectRecord)) {
	held := &rec

	b.mu.Lock()
	if prev, ok := b.records[rec.ConnectionID]; ok {
		prev.timer.Stop()
	}
	b.records[rec.ConnectionID] = held
	held.timer = b.scheduler.AfterFunc(b.grace, func() {
		b.expire(held, expire)
	})
	b.mu.Unlock()

	b.logger.Info("Disconnect buffered",
		zap.String("roomCode", rec.RoomCode),
		zap.String("connectionID", rec.ConnectionID),
		zap.Duration("grace", b.grace))
}

func (b *ReconnectBuffer) expire(held *DisconnectRecord, fn func(DisconnectRecord)) {
	b.mu.Lock()
	if b.records[held.ConnectionID] != held {
		// cancelled or replaced while the timer was firing
		b.mu.Unlock()
		return
	}
	delete(b.records, held.ConnectionID)
	b.mu.Unlock()

	b.logger.Info("Grace window expired",
		zap.String("roomCode", held.RoomCode),
		zap.String("connectionID", held.ConnectionID))
	fn(*held)
}

// Cancel removes the pending record for connectionID. Only the first call for a
// given record reports true.
func (b *ReconnectBuffer) Cancel(connectionID string) (DisconnectRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	held, ok := b.records[connectionID]
	if !ok {
		return DisconnectRecord{}, false
	}
	delete(b.records, connectionID)
	held.timer.Stop()
	return *held, true
}

// Pending reports whether connectionID is inside its grace window.
func (b *ReconnectBuffer) Pending(connectionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.records[connectionID]
	return ok
}

// Lookup returns the pending record for connectionID without cancelling it.
func (b *ReconnectBuffer) Lookup(connectionID string) (DisconnectRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	held, ok := b.records[connectionID]
	if !ok {
		return DisconnectRecord{}, false
	}
	rec := *held
	rec.timer = nil
	return rec, true
}

// Len returns the number of buffered disconnects.
func (b *ReconnectBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

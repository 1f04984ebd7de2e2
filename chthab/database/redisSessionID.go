package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is what the server remembers about an issued reconnect token.
type SessionRecord struct {
	ConnectionID string    `json:"connectionId"`
	RoomCode     string    `json:"roomCode,omitempty"`
	IssuedAt     time.Time `json:"issuedAt"`
}

// SessionStore keeps SessionRecords for the lifetime of their token.
type SessionStore interface {
	Save(ctx context.Context, rec SessionRecord) error
	Load(ctx context.Context, connectionID string) (SessionRecord, error)
	Delete(ctx context.Context, connectionID string) error
}

func sessionKey(connectionID string) string {
	return "session:" + connectionID
}

// RedisSessionStore stores records as JSON under session:<connectionId>.
type RedisSessionStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl, logger: logger}
}

func (s *RedisSessionStore) Save(ctx context.Context, rec SessionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", rec.ConnectionID, err)
	}
	if err := s.rdb.Set(ctx, sessionKey(rec.ConnectionID), payload, s.ttl).Err(); err != nil {
		s.logger.Error("Error storing session info in Redis", zap.String("connectionID", rec.ConnectionID), zap.Error(err))
		return err
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, connectionID string) (SessionRecord, error) {
	var rec SessionRecord
	payload, err := s.rdb.Get(ctx, sessionKey(connectionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, ErrSessionNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("load session %s: %w", connectionID, err)
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.logger.Error("Failed to decode session info", zap.String("connectionID", connectionID), zap.Error(err))
		return rec, ErrSessionNotFound
	}
	return rec, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, connectionID string) error {
	return s.rdb.Del(ctx, sessionKey(connectionID)).Err()
}

// MemorySessionStore is used when Redis is not configured.
type MemorySessionStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	rec       SessionRecord
	expiresAt time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		records: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemorySessionStore) Save(_ context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.records[rec.ConnectionID] = memoryEntry{rec: rec, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemorySessionStore) Load(_ context.Context, connectionID string) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.records[connectionID]
	if !ok || !s.now().Before(entry.expiresAt) {
		delete(s.records, connectionID)
		return SessionRecord{}, ErrSessionNotFound
	}
	return entry.rec, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, connectionID)
	return nil
}

func (s *MemorySessionStore) pruneLocked() {
	now := s.now()
	for id, entry := range s.records {
		if !now.Before(entry.expiresAt) {
			delete(s.records, id)
		}
	}
}

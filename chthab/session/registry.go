package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"chthabserver/models"

	"go.uber.org/zap"
)

// Registry owns every active room, keyed by room code.
//
// Lock order is room.mu before r.mu. r.mu is never held while waiting on a room lock,
// except when creating a room nobody else can see yet.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	members map[string]string // connectionID -> room code

	gateway Gateway
	catalog LocationCatalog
	buffer  *ReconnectBuffer
	opts    Options
	logger  *zap.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(gateway Gateway, catalog LocationCatalog, opts Options, logger *zap.Logger) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		rooms:   make(map[string]*Room),
		members: make(map[string]string),
		gateway: gateway,
		catalog: catalog,
		buffer:  NewReconnectBuffer(opts.GracePeriod, opts.Scheduler, opts.Clock, logger),
		opts:    opts,
		logger:  logger,
	}
}

// Buffer exposes the reconnect buffer.
func (r *Registry) Buffer() *ReconnectBuffer {
	return r.buffer
}

// RoomCount returns the number of active rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// RoomOf returns the code of the room the connection belongs to, if any.
func (r *Registry) RoomOf(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.members[connectionID]
	return code, ok
}

// lockRoom returns the live room for code with its lock held, or nil.
func (r *Registry) lockRoom(code string) *Room {
	r.mu.RLock()
	room := r.rooms[code]
	r.mu.RUnlock()
	if room == nil {
		return nil
	}
	room.mu.Lock()
	if room.destroyed {
		room.mu.Unlock()
		return nil
	}
	return room
}

// lockOrCreateRoom returns the room for code with its lock held, creating it if needed.
func (r *Registry) lockOrCreateRoom(code string) *Room {
	for {
		if room := r.lockRoom(code); room != nil {
			return room
		}

		r.mu.Lock()
		if _, exists := r.rooms[code]; exists {
			// lost a race with another joiner
			r.mu.Unlock()
			continue
		}
		room := newRoom(code, r.catalog.DefaultCategory(), r.opts.Clock(), r.opts.NewRand())
		// unpublished, so taking its lock under r.mu cannot deadlock
		room.mu.Lock()
		r.rooms[code] = room
		r.mu.Unlock()

		r.logger.Info("Room created", zap.String("roomCode", code))
		return room
	}
}

func (r *Registry) remember(connectionID, code string) {
	r.mu.Lock()
	r.members[connectionID] = code
	r.mu.Unlock()
}

func (r *Registry) forget(connectionID, code string) {
	r.mu.Lock()
	if r.members[connectionID] == code {
		delete(r.members, connectionID)
	}
	r.mu.Unlock()
}

// Snapshot returns the current state of a room.
func (r *Registry) Snapshot(code string) (models.RoomData, bool) {
	room := r.lockRoom(NormalizeRoomCode(code))
	if room == nil {
		return models.RoomData{}, false
	}
	defer room.mu.Unlock()
	return room.snapshot(), true
}

// Join adds a player to a room, creating the room on first join.
func (r *Registry) Join(code, username, connectionID string) error {
	code = NormalizeRoomCode(code)
	username = strings.TrimSpace(username)
	if !ValidRoomCode(code) || !ValidUsername(username) {
		return fmt.Errorf("join %q as %q: %w", code, username, ErrInvalidInput)
	}

	prev, hadPrev := r.RoomOf(connectionID)

	room := r.lockOrCreateRoom(code)
	err := r.joinLocked(room, username, connectionID)
	if err != nil && len(room.players) == 0 {
		r.destroyLocked(room, "empty")
	}
	room.mu.Unlock()
	if err != nil {
		return err
	}

	// a connection belongs to at most one room; the old seat goes only once the new one is held
	if hadPrev && prev != code {
		r.Leave(prev, connectionID)
	}
	return nil
}

func (r *Registry) joinLocked(room *Room, username, connectionID string) error {
	now := r.opts.Clock()
	topic := Topic(room.code)

	if room.indexOf(connectionID) >= 0 {
		room.touch(now)
		r.gateway.Publish(topic, room.roomDataMessage())
		return nil
	}

	if idx := room.indexOfUsername(username); idx >= 0 {
		// rapid reconnect under a new connection: replace the stale entry in place
		stale := room.players[idx]
		oldID := stale.ID
		stale.ID = connectionID
		if room.hostID == oldID {
			room.hostID = connectionID
		}
		r.buffer.Cancel(oldID)
		r.gateway.Unsubscribe(topic, oldID)
		r.forget(oldID, room.code)
		r.remember(connectionID, room.code)
		r.gateway.Subscribe(topic, connectionID)
		room.touch(now)
		r.logger.Info("Stale player replaced",
			zap.String("roomCode", room.code),
			zap.String("username", username),
			zap.String("oldConnectionID", oldID),
			zap.String("connectionID", connectionID))
		r.gateway.Publish(topic, room.roomDataMessage())
		return nil
	}

	if len(room.players) >= r.opts.MaxPlayers {
		return fmt.Errorf("join %s: %w", room.code, ErrRoomFull)
	}

	room.players = append(room.players, &models.Player{
		ID:       connectionID,
		Username: username,
		JoinedAt: now,
	})
	if room.hostID == "" {
		room.hostID = connectionID
	}
	r.remember(connectionID, room.code)
	r.gateway.Subscribe(topic, connectionID)
	room.touch(now)

	r.logger.Info("Player joined",
		zap.String("roomCode", room.code),
		zap.String("username", username),
		zap.String("connectionID", connectionID),
		zap.Int("players", len(room.players)))
	r.gateway.Publish(topic, room.roomDataMessage())
	return nil
}

// Leave removes a player. Unknown rooms and players are ignored.
func (r *Registry) Leave(code, connectionID string) {
	room := r.lockRoom(NormalizeRoomCode(code))
	if room == nil {
		return
	}
	defer room.mu.Unlock()
	r.removeLocked(room, connectionID)
}

// removeLocked drops a player, hands the host role to the earliest remaining
// player and destroys the room once it is empty.
func (r *Registry) removeLocked(room *Room, connectionID string) bool {
	idx := room.indexOf(connectionID)
	if idx < 0 {
		return false
	}
	topic := Topic(room.code)

	room.players = append(room.players[:idx], room.players[idx+1:]...)
	r.buffer.Cancel(connectionID)
	r.gateway.Unsubscribe(topic, connectionID)
	r.forget(connectionID, room.code)

	r.logger.Info("Player left",
		zap.String("roomCode", room.code),
		zap.String("connectionID", connectionID),
		zap.Int("players", len(room.players)))

	if len(room.players) == 0 {
		r.destroyLocked(room, "empty")
		return true
	}

	room.touch(r.opts.Clock())
	if room.hostID == connectionID {
		room.hostID = room.players[0].ID
		r.logger.Info("Host changed", zap.String("roomCode", room.code), zap.String("hostID", room.hostID))
		r.gateway.Publish(topic, models.Message{Type: models.EventNewHost, Data: room.hostID})
	}
	r.concludeIfAllReturned(room)

	r.gateway.Publish(topic, models.Message{
		Type: models.EventPlayerLeft,
		Data: models.PlayerLeft{PlayerID: connectionID, RemainingPlayers: len(room.players)},
	})
	r.gateway.Publish(topic, room.roomDataMessage())
	return true
}

// Destroy frees a room regardless of its players.
func (r *Registry) Destroy(code string) {
	room := r.lockRoom(NormalizeRoomCode(code))
	if room == nil {
		return
	}
	defer room.mu.Unlock()
	r.destroyLocked(room, "destroyed")
}

func (r *Registry) destroyLocked(room *Room, reason string) {
	room.destroyed = true
	for _, p := range room.players {
		r.buffer.Cancel(p.ID)
		r.forget(p.ID, room.code)
	}
	room.players = nil
	room.hostID = ""
	room.usedLocations = nil

	r.mu.Lock()
	if r.rooms[room.code] == room {
		delete(r.rooms, room.code)
	}
	r.mu.Unlock()

	r.gateway.DropTopic(Topic(room.code))
	r.logger.Info("Room destroyed", zap.String("roomCode", room.code), zap.String("reason", reason))
}

// IdleRooms lists rooms whose last activity is older than idle.
func (r *Registry) IdleRooms(now time.Time, idle time.Duration) []string {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	var codes []string
	for _, room := range rooms {
		room.mu.Lock()
		if !room.destroyed && now.Sub(room.lastActivity) >= idle {
			codes = append(codes, room.code)
		}
		room.mu.Unlock()
	}
	return codes
}

// DestroyIfIdle destroys the room only if it is still idle once locked.
func (r *Registry) DestroyIfIdle(code string, now time.Time, idle time.Duration) bool {
	room := r.lockRoom(code)
	if room == nil {
		return false
	}
	defer room.mu.Unlock()
	if now.Sub(room.lastActivity) < idle {
		return false
	}
	r.destroyLocked(room, "idle")
	return true
}

// Disconnect starts the grace window for a dropped connection. Membership is kept
// until the window expires without a Resume.
func (r *Registry) Disconnect(connectionID string) {
	code, ok := r.RoomOf(connectionID)
	if !ok {
		return
	}
	room := r.lockRoom(code)
	if room == nil {
		return
	}
	idx := room.indexOf(connectionID)
	if idx < 0 {
		room.mu.Unlock()
		return
	}
	player := *room.players[idx]
	r.gateway.Unsubscribe(Topic(code), connectionID)

	if r.opts.GracePeriod == 0 {
		r.removeLocked(room, connectionID)
		room.mu.Unlock()
		return
	}
	room.mu.Unlock()

	r.buffer.Hold(DisconnectRecord{
		ConnectionID:   connectionID,
		Player:         player,
		RoomCode:       code,
		DisconnectedAt: r.opts.Clock(),
	}, func(rec DisconnectRecord) {
		r.Leave(rec.RoomCode, rec.ConnectionID)
	})
}

// Resume cancels a pending grace window and re-attaches the connection to its room.
// It reports the room code, or false when nothing was pending.
func (r *Registry) Resume(connectionID string) (string, bool) {
	rec, ok := r.buffer.Cancel(connectionID)
	if !ok {
		return "", false
	}
	room := r.lockRoom(rec.RoomCode)
	if room == nil {
		return "", false
	}
	defer room.mu.Unlock()
	if room.indexOf(connectionID) < 0 {
		return "", false
	}

	r.gateway.Subscribe(Topic(room.code), connectionID)
	r.gateway.Send(connectionID, room.roomDataMessage())
	r.logger.Info("Player resumed",
		zap.String("roomCode", room.code),
		zap.String("connectionID", connectionID),
		zap.Duration("away", r.opts.Clock().Sub(rec.DisconnectedAt)))
	return room.code, true
}

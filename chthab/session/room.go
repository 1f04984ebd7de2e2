package session

import (
	"math/rand"
	"sync"
	"time"

	"chthabserver/models"
)

// Phase is where a room is in its round cycle.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseRoundActive
	PhaseVoting
)

func (p Phase) String() string {
	switch p {
	case PhaseRoundActive:
		return "round_active"
	case PhaseVoting:
		return "voting"
	default:
		return "lobby"
	}
}

// Room is one session. Every field is guarded by mu; a destroyed room is never mutated again.
type Room struct {
	mu sync.Mutex

	code          string
	players       []*models.Player
	hostID        string
	category      string
	usedLocations map[string]struct{}
	phase         Phase
	lastActivity  time.Time
	destroyed     bool
	rng           *rand.Rand
}

func newRoom(code, category string, now time.Time, rng *rand.Rand) *Room {
	return &Room{
		code:          code,
		players:       make([]*models.Player, 0, DefaultMaxPlayers),
		category:      category,
		usedLocations: make(map[string]struct{}),
		phase:         PhaseLobby,
		lastActivity:  now,
		rng:           rng,
	}
}

func (r *Room) indexOf(connectionID string) int {
	for i, p := range r.players {
		if p.ID == connectionID {
			return i
		}
	}
	return -1
}

func (r *Room) indexOfUsername(username string) int {
	for i, p := range r.players {
		if p.Username == username {
			return i
		}
	}
	return -1
}

func (r *Room) touch(now time.Time) {
	r.lastActivity = now
}

func (r *Room) allReturned() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.Returned {
			return false
		}
	}
	return true
}

// snapshot copies the players so the result can leave the lock.
func (r *Room) snapshot() models.RoomData {
	players := make([]models.Player, len(r.players))
	for i, p := range r.players {
		players[i] = *p
	}
	return models.RoomData{
		Players:  players,
		HostID:   r.hostID,
		Category: r.category,
	}
}

func (r *Room) roomDataMessage() models.Message {
	return models.Message{Type: models.EventRoomData, Data: r.snapshot()}
}

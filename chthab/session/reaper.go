package session

import (
	"sync"
	"time"

	"chthabserver/models"

	"go.uber.org/zap"
)

// Evictor force-closes a connection. Closing must feed the normal disconnect path.
type Evictor interface {
	Evict(connectionID string)
}

// ReaperOptions configures idle eviction. A zero WarnBefore disables the warning.
type ReaperOptions struct {
	ConnIdle   time.Duration
	WarnBefore time.Duration
	RoomIdle   time.Duration
	Clock      func() time.Time
}

type connActivity struct {
	lastSeen time.Time
	warned   bool
}

// Reaper evicts idle connections and destroys idle rooms.
type Reaper struct {
	mu    sync.Mutex
	conns map[string]*connActivity

	registry *Registry
	gateway  Gateway
	evictor  Evictor
	opts     ReaperOptions
	logger   *zap.Logger
}

func NewReaper(registry *Registry, gateway Gateway, evictor Evictor, opts ReaperOptions, logger *zap.Logger) *Reaper {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Reaper{
		conns:    make(map[string]*connActivity),
		registry: registry,
		gateway:  gateway,
		evictor:  evictor,
		opts:     opts,
		logger:   logger,
	}
}

// Touch records inbound activity on a connection, tracking it if new.
func (rp *Reaper) Touch(connectionID string) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.conns[connectionID] = &connActivity{lastSeen: rp.opts.Clock()}
}

// Forget stops tracking a closed connection.
func (rp *Reaper) Forget(connectionID string) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	delete(rp.conns, connectionID)
}

// Tracked returns the number of connections being watched.
func (rp *Reaper) Tracked() int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return len(rp.conns)
}

// Sweep runs both idle policies once.
func (rp *Reaper) Sweep() {
	now := rp.opts.Clock()
	rp.sweepConnections(now)
	rp.sweepRooms(now)
}

func (rp *Reaper) sweepConnections(now time.Time) {
	if rp.opts.ConnIdle <= 0 {
		return
	}

	var warn, evict []string
	rp.mu.Lock()
	for id, act := range rp.conns {
		idle := now.Sub(act.lastSeen)
		switch {
		case idle >= rp.opts.ConnIdle:
			evict = append(evict, id)
			delete(rp.conns, id)
		case rp.opts.WarnBefore > 0 && !act.warned && idle >= rp.opts.ConnIdle-rp.opts.WarnBefore:
			act.warned = true
			warn = append(warn, id)
		}
	}
	rp.mu.Unlock()

	secondsLeft := int(rp.opts.WarnBefore / time.Second)
	for _, id := range warn {
		rp.gateway.Send(id, models.Message{
			Type: models.EventIdleWarning,
			Data: models.IdleWarning{SecondsLeft: secondsLeft},
		})
	}
	for _, id := range evict {
		rp.logger.Info("Evicting idle connection", zap.String("connectionID", id))
		rp.evictor.Evict(id)
	}
}

func (rp *Reaper) sweepRooms(now time.Time) {
	if rp.opts.RoomIdle <= 0 {
		return
	}
	destroyed := 0
	for _, code := range rp.registry.IdleRooms(now, rp.opts.RoomIdle) {
		if rp.registry.DestroyIfIdle(code, now, rp.opts.RoomIdle) {
			destroyed++
		}
	}
	if destroyed > 0 {
		rp.logger.Info("Idle rooms destroyed", zap.Int("rooms", destroyed))
	}
}

package session

import (
	"math/rand"
	"time"

	"chthabserver/models"
)

const (
	DefaultMaxPlayers  = 8
	DefaultMinPlayers  = 2
	DefaultGracePeriod = 10 * time.Second
)

// Gateway is the transport boundary. Implementations must not block:
// the engine calls them while holding a room's lock.
type Gateway interface {
	Subscribe(topic, connectionID string)
	Unsubscribe(topic, connectionID string)
	DropTopic(topic string)
	Publish(topic string, msg models.Message)
	Send(connectionID string, msg models.Message)
}

// LocationCatalog supplies the drawable entries of each category.
type LocationCatalog interface {
	Entries(category string) []models.LocationEntry
	DefaultCategory() string
}

// Timer is a scheduled task that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options tunes a Registry. Zero values fall back to defaults.
type Options struct {
	MaxPlayers            int
	MinPlayers            int
	GracePeriod           time.Duration
	ResetReadyOnEveryVote bool

	Clock     func() time.Time
	Scheduler Scheduler
	NewRand   func() *rand.Rand

	// OnRoundStarted is called with the room locked and must not block.
	OnRoundStarted func(models.RoundSummary)
}

func (o Options) withDefaults() Options {
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = DefaultMaxPlayers
	}
	if o.MinPlayers <= 0 {
		o.MinPlayers = DefaultMinPlayers
	}
	switch {
	case o.GracePeriod == 0:
		o.GracePeriod = DefaultGracePeriod
	case o.GracePeriod < 0:
		// negative disables the grace window: disconnects leave immediately
		o.GracePeriod = 0
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Scheduler == nil {
		o.Scheduler = realScheduler{}
	}
	if o.NewRand == nil {
		o.NewRand = func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	return o
}

package session

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"chthabserver/catalog"
	"chthabserver/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type delivery struct {
	Topic        string
	ConnectionID string
	Msg          models.Message
}

// recordingGateway keeps every call so tests can inspect fan-out.
type recordingGateway struct {
	mu          sync.Mutex
	subscribers map[string]map[string]bool
	published   []delivery
	sent        []delivery
	dropped     []string
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{subscribers: map[string]map[string]bool{}}
}

func (g *recordingGateway) Subscribe(topic, connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.subscribers[topic] == nil {
		g.subscribers[topic] = map[string]bool{}
	}
	g.subscribers[topic][connectionID] = true
}

func (g *recordingGateway) Unsubscribe(topic, connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.subscribers[topic], connectionID)
}

func (g *recordingGateway) DropTopic(topic string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.subscribers, topic)
	g.dropped = append(g.dropped, topic)
}

func (g *recordingGateway) Publish(topic string, msg models.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published = append(g.published, delivery{Topic: topic, Msg: msg})
}

func (g *recordingGateway) Send(connectionID string, msg models.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, delivery{ConnectionID: connectionID, Msg: msg})
}

func (g *recordingGateway) subscribed(topic, connectionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscribers[topic][connectionID]
}

func (g *recordingGateway) publishedOf(eventType string) []delivery {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []delivery
	for _, d := range g.published {
		if d.Msg.Type == eventType {
			out = append(out, d)
		}
	}
	return out
}

func (g *recordingGateway) sentOf(eventType string) []delivery {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []delivery
	for _, d := range g.sent {
		if d.Msg.Type == eventType {
			out = append(out, d)
		}
	}
	return out
}

func (g *recordingGateway) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published = nil
	g.sent = nil
	g.dropped = nil
}

func (g *recordingGateway) lastRoomData(t *testing.T) models.RoomData {
	t.Helper()
	all := g.publishedOf(models.EventRoomData)
	require.NotEmpty(t, all, "no roomData published")
	return all[len(all)-1].Msg.Data.(models.RoomData)
}

// manualScheduler only fires timers when the test says so.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fireAll runs every timer that is neither stopped nor fired.
func (s *manualScheduler) fireAll() int {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// fakeClock is advanced by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	reg       *Registry
	gw        *recordingGateway
	sched     *manualScheduler
	clock     *fakeClock
	summaries []models.RoundSummary
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		gw:    newRecordingGateway(),
		sched: &manualScheduler{},
		clock: newFakeClock(),
	}
	seed := int64(0)
	opts := Options{
		Clock:     f.clock.Now,
		Scheduler: f.sched,
		NewRand: func() *rand.Rand {
			seed++
			return rand.New(rand.NewSource(seed))
		},
		OnRoundStarted: func(s models.RoundSummary) {
			f.summaries = append(f.summaries, s)
		},
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.reg = NewRegistry(f.gw, cat, opts, zap.NewNop())
	return f
}

func (f *fixture) join(t *testing.T, code, username, connectionID string) {
	t.Helper()
	require.NoError(t, f.reg.Join(code, username, connectionID))
}

func (f *fixture) snapshot(t *testing.T, code string) models.RoomData {
	t.Helper()
	data, ok := f.reg.Snapshot(code)
	require.True(t, ok, "room %s should exist", code)
	return data
}

func playerIDs(data models.RoomData) []string {
	ids := make([]string, len(data.Players))
	for i, p := range data.Players {
		ids[i] = p.ID
	}
	return ids
}

package broadcast

import (
	"encoding/json"
	"testing"

	"chthabserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func drain(c *Client) []models.Envelope {
	var out []models.Envelope
	for {
		select {
		case frame, ok := <-c.Outbox():
			if !ok {
				return out
			}
			var env models.Envelope
			if err := json.Unmarshal(frame, &env); err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func TestPublishReachesOnlySubscribers(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b, c := NewClient("a", nil, nil), NewClient("b", nil, nil), NewClient("c", nil, nil)
	h.Register(a)
	h.Register(b)
	h.Register(c)
	h.Subscribe("room:AB12CD", "a")
	h.Subscribe("room:AB12CD", "b")
	h.Subscribe("room:ZZZZZZ", "c")

	h.Publish("room:AB12CD", models.Message{Type: models.EventNewHost, Data: "b"})

	for _, cl := range []*Client{a, b} {
		got := drain(cl)
		require.Len(t, got, 1)
		assert.Equal(t, models.EventNewHost, got[0].Type)
		assert.JSONEq(t, `"b"`, string(got[0].Data))
	}
	assert.Empty(t, drain(c))
}

func TestSendIsPointToPoint(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b := NewClient("a", nil, nil), NewClient("b", nil, nil)
	h.Register(a)
	h.Register(b)

	h.Send("b", models.Message{Type: models.EventKicked})
	h.Send("ghost", models.Message{Type: models.EventKicked})

	assert.Empty(t, drain(a))
	got := drain(b)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventKicked, got[0].Type)
	assert.Empty(t, got[0].Data, "kicked carries no payload")
}

func TestFullOutboxDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := NewClient("a", nil, nil)
	h.Register(a)

	for i := 0; i < outboxSize+10; i++ {
		h.Send("a", models.Message{Type: models.EventRoomData})
	}
	assert.Len(t, drain(a), outboxSize)
}

func TestUnsubscribeAndDropTopic(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.Subscribe("room:AB12CD", "a")
	h.Subscribe("room:AB12CD", "b")

	h.Unsubscribe("room:AB12CD", "a")
	assert.Equal(t, []string{"b"}, h.Subscribers("room:AB12CD"))

	h.DropTopic("room:AB12CD")
	assert.Empty(t, h.Subscribers("room:AB12CD"))
}

func TestUnregisterOnlyRemovesLiveClient(t *testing.T) {
	h := NewHub(zap.NewNop())
	old := NewClient("a", nil, nil)
	h.Register(old)
	fresh := NewClient("a", nil, nil)
	h.Register(fresh)

	_, open := <-old.Outbox()
	assert.False(t, open, "replaced client's outbox is closed")

	assert.False(t, h.Unregister(old), "a replaced client must not remove its successor")
	assert.True(t, h.Connected("a"))

	assert.True(t, h.Unregister(fresh))
	assert.False(t, h.Connected("a"))
	assert.Equal(t, 0, h.ClientCount())

	// sends after unregister are ignored
	h.Send("a", models.Message{Type: models.EventRoomData})
}

func TestEvictUnknownIsNoop(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.Evict("ghost")
	h.Register(NewClient("a", nil, nil))
	h.Evict("a")
	assert.True(t, h.Connected("a"), "evict closes the socket; the read loop unregisters")
}

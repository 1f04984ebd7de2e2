package session

import (
	"fmt"
	"testing"

	"chthabserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kuwaitNames(t *testing.T, f *fixture) map[string]bool {
	t.Helper()
	names := map[string]bool{}
	for _, e := range f.reg.catalog.Entries("Kuwait") {
		names[e.Name] = true
	}
	require.Len(t, names, 16)
	return names
}

func secretsByConnection(t *testing.T, f *fixture) map[string]models.RoundSecret {
	t.Helper()
	out := map[string]models.RoundSecret{}
	for _, d := range f.gw.sentOf(models.EventGameStarted) {
		_, dup := out[d.ConnectionID]
		require.False(t, dup, "connection %s got two secrets", d.ConnectionID)
		out[d.ConnectionID] = d.Msg.Data.(models.RoundSecret)
	}
	return out
}

func TestStartRoundScenario(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c-amal")
	f.join(t, "AB12CD", "sara", "c-sara")

	data := f.gw.lastRoomData(t)
	assert.Len(t, data.Players, 2)
	assert.Equal(t, "c-amal", data.HostID)

	f.gw.reset()
	require.NoError(t, f.reg.StartRound("AB12CD", "Kuwait"))

	secrets := secretsByConnection(t, f)
	require.Len(t, secrets, 2)

	names := kuwaitNames(t, f)
	amal, sara := secrets["c-amal"], secrets["c-sara"]
	roles := []string{amal.Role, sara.Role}
	assert.Contains(t, roles, models.RoleSpy)
	for _, s := range secrets {
		if s.Role != models.RoleSpy {
			assert.True(t, names[s.Role], "role %q should be a Kuwait location", s.Role)
			assert.Equal(t, s.Location, s.Role)
		}
	}
	assert.Equal(t, amal.Location, sara.Location)
	assert.Equal(t, amal.Image, sara.Image)
	assert.Equal(t, "Kuwait", amal.Category)
	assert.Equal(t, "Kuwait", sara.Category)
	assert.Equal(t, "c-amal", amal.HostID)
	assert.Equal(t, "c-amal", sara.HostID)

	assert.Empty(t, f.gw.publishedOf(models.EventGameStarted), "secrets are never broadcast")

	require.Len(t, f.summaries, 1)
	assert.Equal(t, models.RoundSummary{
		RoomCode:    "AB12CD",
		Category:    "Kuwait",
		Location:    amal.Location,
		PlayerCount: 2,
		StartedAt:   f.clock.Now(),
	}, f.summaries[0])

	phase, ok := f.reg.Phase("AB12CD")
	assert.True(t, ok)
	assert.Equal(t, PhaseRoundActive, phase)
}

func TestStartRoundExactlyOneSpy(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 8; i++ {
		f.join(t, "SPY123", fmt.Sprintf("p%d", i), fmt.Sprintf("c%d", i))
	}

	for round := 0; round < 30; round++ {
		f.gw.reset()
		require.NoError(t, f.reg.StartRound("SPY123", ""))

		secrets := secretsByConnection(t, f)
		require.Len(t, secrets, 8)
		spies := 0
		locations := map[string]bool{}
		for _, s := range secrets {
			if s.Role == models.RoleSpy {
				spies++
			} else {
				locations[s.Role] = true
			}
		}
		assert.Equal(t, 1, spies)
		assert.Len(t, locations, 1, "every non-spy shares one location")
	}
}

func TestStartRoundInsufficientPlayers(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c1")
	f.reg.SetReady("AB12CD", "c1")
	before := f.snapshot(t, "AB12CD")
	f.gw.reset()

	err := f.reg.StartRound("AB12CD", "Kuwait")
	assert.ErrorIs(t, err, ErrInsufficientPlayers)
	assert.Empty(t, f.gw.published)
	assert.Empty(t, f.gw.sent)
	assert.Equal(t, before, f.snapshot(t, "AB12CD"))
}

func TestStartRoundInvalidCategory(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c1")
	f.join(t, "AB12CD", "sara", "c2")
	f.reg.SetReady("AB12CD", "c2")
	before := f.snapshot(t, "AB12CD")
	f.gw.reset()

	err := f.reg.StartRound("AB12CD", "Mars")
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.Empty(t, f.gw.sent)
	assert.Equal(t, before, f.snapshot(t, "AB12CD"), "failed start leaves state intact")

	f.reg.UpdateCategory("AB12CD", "Mars")
	assert.ErrorIs(t, f.reg.StartRound("AB12CD", ""), ErrInvalidCategory)
}

func TestStartRoundUnknownRoomIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.reg.StartRound("ZZZZZZ", ""))
	assert.Empty(t, f.gw.sent)
}

func TestStartRoundUsesStoredCategory(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c1")
	f.join(t, "AB12CD", "sara", "c2")
	f.reg.UpdateCategory("AB12CD", "Soccer-Players")
	f.gw.reset()

	require.NoError(t, f.reg.StartRound("AB12CD", ""))
	for _, s := range secretsByConnection(t, f) {
		assert.Equal(t, "Soccer-Players", s.Category)
	}

	// an explicit category wins and becomes the room's category
	f.gw.reset()
	require.NoError(t, f.reg.StartRound("AB12CD", "Kuwait-Places"))
	for _, s := range secretsByConnection(t, f) {
		assert.Equal(t, "Kuwait-Places", s.Category)
	}
	assert.Equal(t, "Kuwait-Places", f.snapshot(t, "AB12CD").Category)
}

func TestStartRoundResetsFlags(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c1")
	f.join(t, "AB12CD", "sara", "c2")
	f.reg.SetReady("AB12CD", "c1")
	f.reg.VoteReturn("AB12CD", "c2")

	require.NoError(t, f.reg.StartRound("AB12CD", ""))
	for _, p := range f.snapshot(t, "AB12CD").Players {
		assert.False(t, p.Ready)
		assert.False(t, p.Returned)
	}
}

func TestNoImmediateRepeatUntilRotationEnds(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c1")
	f.join(t, "AB12CD", "sara", "c2")

	drawn := func() string {
		f.gw.reset()
		require.NoError(t, f.reg.StartRound("AB12CD", "Kuwait"))
		for _, s := range secretsByConnection(t, f) {
			return s.Location
		}
		t.Fatal("no secrets delivered")
		return ""
	}

	for cycle := 0; cycle < 3; cycle++ {
		seen := map[string]bool{}
		for i := 0; i < 16; i++ {
			loc := drawn()
			assert.False(t, seen[loc], "cycle %d draw %d repeated %q", cycle, i, loc)
			seen[loc] = true
		}
		assert.Len(t, seen, 16, "a full rotation shows every location once")
	}
}

func TestSingleEntryCategoryRepeats(t *testing.T) {
	f := newFixture(t)
	f.reg.catalog = singleEntryCatalog{}
	f.join(t, "AB12CD", "amal", "c1")
	f.join(t, "AB12CD", "sara", "c2")

	for i := 0; i < 3; i++ {
		f.gw.reset()
		require.NoError(t, f.reg.StartRound("AB12CD", "Solo"))
		for _, s := range secretsByConnection(t, f) {
			assert.Equal(t, "only", s.Location)
		}
	}
}

type singleEntryCatalog struct{}

func (singleEntryCatalog) Entries(category string) []models.LocationEntry {
	if category != "Solo" {
		return nil
	}
	return []models.LocationEntry{{Name: "only", Image: "/images/only.png"}}
}

func (singleEntryCatalog) DefaultCategory() string { return "Solo" }

func TestSwitchingCategoryStartsFreshRotation(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c1")
	f.join(t, "AB12CD", "sara", "c2")

	for i := 0; i < 3; i++ {
		require.NoError(t, f.reg.StartRound("AB12CD", "Kuwait"))
	}
	require.NoError(t, f.reg.StartRound("AB12CD", "Soccer-Players"))

	room := f.reg.lockRoom("AB12CD")
	require.NotNil(t, room)
	defer room.mu.Unlock()

	soccer := map[string]bool{}
	for _, e := range f.reg.catalog.Entries("Soccer-Players") {
		soccer[e.Name] = true
	}
	assert.Len(t, room.usedLocations, 1)
	for name := range room.usedLocations {
		assert.True(t, soccer[name], "used set only holds the selected category's names")
	}
}

func TestVoteBarrier(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c1")
	f.join(t, "AB12CD", "sara", "c2")
	f.join(t, "AB12CD", "noor", "c3")
	require.NoError(t, f.reg.StartRound("AB12CD", ""))
	f.reg.SetReady("AB12CD", "c1")
	f.reg.SetReady("AB12CD", "c3")

	f.gw.reset()
	f.reg.VoteReturn("AB12CD", "c1")
	f.reg.VoteReturn("AB12CD", "c2")

	phase, _ := f.reg.Phase("AB12CD")
	assert.Equal(t, PhaseVoting, phase, "a strict subset never concludes the round")
	data := f.snapshot(t, "AB12CD")
	assert.True(t, data.Players[0].Ready, "ready survives partial votes by default")
	assert.Len(t, f.gw.publishedOf(models.EventRoomData), 2, "every vote is broadcast")

	f.reg.VoteReturn("AB12CD", "c3")
	phase, _ = f.reg.Phase("AB12CD")
	assert.Equal(t, PhaseLobby, phase)
	for _, p := range f.snapshot(t, "AB12CD").Players {
		assert.True(t, p.Returned, "returned stays set until the next round")
		assert.False(t, p.Ready)
	}

	// later ready in the lobby is not wiped by a repeated vote
	f.reg.SetReady("AB12CD", "c1")
	f.reg.VoteReturn("AB12CD", "c1")
	assert.True(t, f.snapshot(t, "AB12CD").Players[0].Ready)
}

func TestVoteIgnoresUnknownPlayer(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c1")
	f.gw.reset()

	f.reg.VoteReturn("AB12CD", "ghost")
	f.reg.VoteReturn("ZZZZZZ", "c1")
	assert.Empty(t, f.gw.published)
}

func TestVoteResetsReadyOnEveryVoteWhenConfigured(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ResetReadyOnEveryVote = true })
	f.join(t, "AB12CD", "amal", "c1")
	f.join(t, "AB12CD", "sara", "c2")
	require.NoError(t, f.reg.StartRound("AB12CD", ""))
	f.reg.SetReady("AB12CD", "c2")

	f.reg.VoteReturn("AB12CD", "c1")

	data := f.snapshot(t, "AB12CD")
	assert.False(t, data.Players[1].Ready)
	phase, _ := f.reg.Phase("AB12CD")
	assert.Equal(t, PhaseVoting, phase)
}

func TestLeavingNonVoterConcludesRound(t *testing.T) {
	f := newFixture(t)
	f.join(t, "AB12CD", "amal", "c1")
	f.join(t, "AB12CD", "sara", "c2")
	f.join(t, "AB12CD", "noor", "c3")
	require.NoError(t, f.reg.StartRound("AB12CD", ""))
	f.reg.VoteReturn("AB12CD", "c1")
	f.reg.VoteReturn("AB12CD", "c2")

	f.reg.Leave("AB12CD", "c3")

	phase, _ := f.reg.Phase("AB12CD")
	assert.Equal(t, PhaseLobby, phase)
}

package session

import (
	"fmt"

	"chthabserver/models"

	"go.uber.org/zap"
)

// SetReady marks a player ready. Unknown rooms and players are ignored.
func (r *Registry) SetReady(code, connectionID string) {
	room := r.lockRoom(NormalizeRoomCode(code))
	if room == nil {
		return
	}
	defer room.mu.Unlock()

	idx := room.indexOf(connectionID)
	if idx < 0 {
		return
	}
	room.players[idx].Ready = true
	room.touch(r.opts.Clock())
	r.gateway.Publish(Topic(room.code), room.roomDataMessage())
}

// UpdateCategory overwrites the room's category. Used locations are kept; they are
// filtered against the selected category at draw time.
func (r *Registry) UpdateCategory(code, category string) {
	room := r.lockRoom(NormalizeRoomCode(code))
	if room == nil {
		return
	}
	defer room.mu.Unlock()

	room.category = category
	room.touch(r.opts.Clock())
	r.gateway.Publish(Topic(room.code), room.roomDataMessage())
}

// StartRound draws a location, picks a spy and sends every player their own card.
// requestedCategory may be empty.
func (r *Registry) StartRound(code, requestedCategory string) error {
	room := r.lockRoom(NormalizeRoomCode(code))
	if room == nil {
		return nil
	}
	defer room.mu.Unlock()

	if len(room.players) < r.opts.MinPlayers {
		return fmt.Errorf("start %s with %d players: %w", room.code, len(room.players), ErrInsufficientPlayers)
	}

	category := requestedCategory
	if category == "" {
		category = room.category
	}
	if category == "" {
		category = r.catalog.DefaultCategory()
	}
	entries := r.catalog.Entries(category)
	if len(entries) == 0 {
		return fmt.Errorf("start %s with category %q: %w", room.code, category, ErrInvalidCategory)
	}

	for _, p := range room.players {
		p.Ready = false
		p.Returned = false
	}
	room.category = category

	location := room.drawLocation(entries)
	spy := room.rng.Intn(len(room.players))

	for i, p := range room.players {
		role := location.Name
		if i == spy {
			role = models.RoleSpy
		}
		r.gateway.Send(p.ID, models.Message{
			Type: models.EventGameStarted,
			Data: models.RoundSecret{
				Role:     role,
				Location: location.Name,
				Image:    location.Image,
				Category: category,
				HostID:   room.hostID,
			},
		})
	}

	now := r.opts.Clock()
	room.phase = PhaseRoundActive
	room.touch(now)

	r.logger.Info("Round started",
		zap.String("roomCode", room.code),
		zap.String("category", category),
		zap.Int("players", len(room.players)),
		zap.Int("usedLocations", len(room.usedLocations)))
	r.gateway.Publish(Topic(room.code), room.roomDataMessage())

	if r.opts.OnRoundStarted != nil {
		r.opts.OnRoundStarted(models.RoundSummary{
			RoomCode:    room.code,
			Category:    category,
			Location:    location.Name,
			PlayerCount: len(room.players),
			StartedAt:   now,
		})
	}
	return nil
}

// drawLocation picks uniformly among the entries not yet shown in this rotation.
// Once every entry has been shown the rotation starts over.
func (r *Room) drawLocation(entries []models.LocationEntry) models.LocationEntry {
	inCategory := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		inCategory[e.Name] = struct{}{}
	}
	// used names from other categories never match; drop them
	for name := range r.usedLocations {
		if _, ok := inCategory[name]; !ok {
			delete(r.usedLocations, name)
		}
	}

	pool := make([]models.LocationEntry, 0, len(entries))
	for _, e := range entries {
		if _, used := r.usedLocations[e.Name]; !used {
			pool = append(pool, e)
		}
	}
	if len(pool) == 0 {
		r.usedLocations = make(map[string]struct{}, len(entries))
		pool = entries
	}

	picked := pool[r.rng.Intn(len(pool))]
	r.usedLocations[picked.Name] = struct{}{}
	return picked
}

// VoteReturn records a vote to go back to the lobby. The round concludes once every
// current player has voted.
func (r *Registry) VoteReturn(code, connectionID string) {
	room := r.lockRoom(NormalizeRoomCode(code))
	if room == nil {
		return
	}
	defer room.mu.Unlock()

	idx := room.indexOf(connectionID)
	if idx < 0 {
		return
	}
	room.players[idx].Returned = true
	if r.opts.ResetReadyOnEveryVote {
		for _, p := range room.players {
			p.Ready = false
		}
	}
	if room.phase == PhaseRoundActive {
		room.phase = PhaseVoting
	}
	r.concludeIfAllReturned(room)

	room.touch(r.opts.Clock())
	r.gateway.Publish(Topic(room.code), room.roomDataMessage())
}

// concludeIfAllReturned moves a running round back to the lobby. Returned flags stay
// set until the next round starts.
func (r *Registry) concludeIfAllReturned(room *Room) {
	if room.phase == PhaseLobby || !room.allReturned() {
		return
	}
	for _, p := range room.players {
		p.Ready = false
	}
	room.phase = PhaseLobby
	r.logger.Info("Round concluded", zap.String("roomCode", room.code))
}

// Kick removes target on behalf of the host.
func (r *Registry) Kick(code, requesterID, targetID string) error {
	room := r.lockRoom(NormalizeRoomCode(code))
	if room == nil {
		return nil
	}
	defer room.mu.Unlock()

	if room.hostID != requesterID {
		return fmt.Errorf("kick in %s: %w", room.code, ErrNotHost)
	}
	if targetID == requesterID {
		return fmt.Errorf("kick in %s: %w", room.code, ErrInvalidTarget)
	}
	if room.indexOf(targetID) < 0 {
		return nil
	}

	r.gateway.Send(targetID, models.Message{Type: models.EventKicked})
	r.logger.Info("Player kicked",
		zap.String("roomCode", room.code),
		zap.String("hostID", requesterID),
		zap.String("connectionID", targetID))
	r.removeLocked(room, targetID)
	return nil
}

// Phase reports the round phase of a room.
func (r *Registry) Phase(code string) (Phase, bool) {
	room := r.lockRoom(NormalizeRoomCode(code))
	if room == nil {
		return PhaseLobby, false
	}
	defer room.mu.Unlock()
	return room.phase, true
}

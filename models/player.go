package models

import "time"

// Player is a member of a room. ID is the connection identifier.
type Player struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Ready    bool      `json:"ready"`
	Returned bool      `json:"returned"`
	JoinedAt time.Time `json:"joinedAt"`
}

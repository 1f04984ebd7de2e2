package models

import "encoding/json"

// Inbound event names
const (
	EventJoinRoom       = "joinRoom"
	EventReady          = "ready"
	EventUpdateCategory = "updateCategory"
	EventStartGame      = "startGame"
	EventReturnVote     = "returnToLobbyVote"
	EventLeaveRoom      = "leaveRoom"
	EventKickPlayer     = "kickPlayer"
)

// Outbound event names
const (
	EventRoomData     = "roomData"
	EventNewHost      = "newHost"
	EventGameStarted  = "gameStarted"
	EventKicked       = "kicked"
	EventErrorMessage = "errorMessage"
	EventPlayerLeft   = "playerLeft"
	EventSession      = "session"
	EventIdleWarning  = "idleWarning"
)

// RoleSpy is the role delivered to the round's spy.
const RoleSpy = "Spy"

// Envelope is the inbound wire frame: {"type": ..., "data": ...}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message is the outbound wire frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type ReadyRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type UpdateCategoryRequest struct {
	RoomCode string `json:"roomCode"`
	Category string `json:"category"`
}

type StartGameRequest struct {
	RoomCode string `json:"roomCode"`
	Category string `json:"category,omitempty"`
}

type LeaveRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type KickPlayerRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// RoomData is the full room snapshot broadcast after every change.
type RoomData struct {
	Players  []Player `json:"players"`
	HostID   string   `json:"hostId"`
	Category string   `json:"category"`
}

// RoundSecret is delivered to exactly one connection when a round starts.
type RoundSecret struct {
	Role     string `json:"role"`
	Location string `json:"location"`
	Image    string `json:"image"`
	Category string `json:"category"`
	HostID   string `json:"hostId"`
}

type PlayerLeft struct {
	PlayerID         string `json:"playerId"`
	RemainingPlayers int    `json:"remainingPlayers"`
}

type SessionInfo struct {
	ConnectionID string `json:"connectionId"`
	Token        string `json:"token"`
	Resumed      bool   `json:"resumed"`
}

type IdleWarning struct {
	SecondsLeft int `json:"secondsLeft"`
}

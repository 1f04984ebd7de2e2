package session

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrRoomFull            = errors.New("room full")
	ErrInsufficientPlayers = errors.New("insufficient players")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrNotHost             = errors.New("not host")
	ErrInvalidTarget       = errors.New("invalid target")
)

// UserMessage turns an engine error into the text sent back to the requester.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "Invalid room code or username"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrInsufficientPlayers):
		return "At least 2 players are needed to start"
	case errors.Is(err, ErrInvalidCategory):
		return "Unknown category"
	case errors.Is(err, ErrNotHost):
		return "Only the host can do that"
	case errors.Is(err, ErrInvalidTarget):
		return "You cannot kick yourself"
	default:
		return "Something went wrong"
	}
}

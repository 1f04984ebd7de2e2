package actions

import (
	"encoding/json"
	"fmt"

	"chthabserver/chthab/session"
	"chthabserver/models"
)

// Engine is the part of the session registry the read loop drives.
type Engine interface {
	Join(code, username, connectionID string) error
	SetReady(code, connectionID string)
	UpdateCategory(code, category string)
	StartRound(code, requestedCategory string) error
	VoteReturn(code, connectionID string)
	Leave(code, connectionID string)
	Kick(code, requesterID, targetID string) error
	Disconnect(connectionID string)
}

// Dispatch decodes one inbound frame and applies it on behalf of connectionID.
// A non-nil error is meant for the requester only.
func Dispatch(engine Engine, connectionID string, env models.Envelope) error {
	switch env.Type {
	case models.EventJoinRoom:
		var req models.JoinRoomRequest
		if err := decode(env, &req); err != nil {
			return err
		}
		return engine.Join(req.RoomCode, req.Username, connectionID)

	case models.EventReady:
		var req models.ReadyRequest
		if err := decode(env, &req); err != nil {
			return err
		}
		// playerId in the payload is not trusted; the sender is the player
		engine.SetReady(req.RoomCode, connectionID)

	case models.EventUpdateCategory:
		var req models.UpdateCategoryRequest
		if err := decode(env, &req); err != nil {
			return err
		}
		engine.UpdateCategory(req.RoomCode, req.Category)

	case models.EventStartGame:
		var req models.StartGameRequest
		if err := decode(env, &req); err != nil {
			return err
		}
		return engine.StartRound(req.RoomCode, req.Category)

	case models.EventReturnVote:
		code, err := decodeRoomCode(env)
		if err != nil {
			return err
		}
		engine.VoteReturn(code, connectionID)

	case models.EventLeaveRoom:
		var req models.LeaveRoomRequest
		if err := decode(env, &req); err != nil {
			return err
		}
		engine.Leave(req.RoomCode, connectionID)

	case models.EventKickPlayer:
		var req models.KickPlayerRequest
		if err := decode(env, &req); err != nil {
			return err
		}
		return engine.Kick(req.RoomCode, connectionID, req.PlayerID)

	default:
		return fmt.Errorf("unknown event %q: %w", env.Type, session.ErrInvalidInput)
	}
	return nil
}

func decode(env models.Envelope, v interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s without data: %w", env.Type, session.ErrInvalidInput)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", env.Type, err, session.ErrInvalidInput)
	}
	return nil
}

// decodeRoomCode accepts the bare string the web client sends as well as {"roomCode": ...}.
func decodeRoomCode(env models.Envelope) (string, error) {
	var code string
	if err := json.Unmarshal(env.Data, &code); err == nil {
		return code, nil
	}
	var req models.LeaveRoomRequest
	if err := decode(env, &req); err != nil {
		return "", err
	}
	return req.RoomCode, nil
}

package actions

import (
	"encoding/json"
	"errors"

	"chthabserver/chthab/broadcast"
	"chthabserver/chthab/connection"
	"chthabserver/chthab/session"
	"chthabserver/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrRateLimited = errors.New("rate limited")

// Activity is told about every inbound frame so idle sockets can be reaped.
type Activity interface {
	Touch(connectionID string)
	Forget(connectionID string)
}

// HandleClient is the per-connection read loop. When the socket goes away the
// connection enters its reconnect grace window.
func HandleClient(client *broadcast.Client, hub *broadcast.Hub, engine Engine, activity Activity, logger *zap.Logger) {
	defer func() {
		client.Conn.Close()
		if hub.Unregister(client) {
			activity.Forget(client.ID)
			engine.Disconnect(client.ID)
			logger.Info("Client removed", zap.String("connectionID", client.ID))
		}
	}()

	connection.PrepareRead(client)

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error", zap.String("connectionID", client.ID), zap.Error(err))
			}
			break
		}
		activity.Touch(client.ID)

		if client.Limiter != nil && !client.Limiter.Allow() {
			replyError(hub, client.ID, ErrRateLimited)
			continue
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Debug("Error decoding message", zap.String("connectionID", client.ID), zap.Error(err))
			replyError(hub, client.ID, session.ErrInvalidInput)
			continue
		}

		if err := Dispatch(engine, client.ID, env); err != nil {
			logger.Debug("Request rejected",
				zap.String("connectionID", client.ID),
				zap.String("type", env.Type),
				zap.Error(err))
			replyError(hub, client.ID, err)
		}
	}
}

// replyError sends err to the requester alone.
func replyError(hub *broadcast.Hub, connectionID string, err error) {
	text := session.UserMessage(err)
	if errors.Is(err, ErrRateLimited) {
		text = "Too many requests, slow down"
	}
	hub.Send(connectionID, models.Message{Type: models.EventErrorMessage, Data: text})
}

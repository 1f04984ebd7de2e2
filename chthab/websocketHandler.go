package chthab

import (
	"context"
	"net/http"
	"time"

	"chthabserver/auth"
	"chthabserver/chthab/actions"
	"chthabserver/chthab/broadcast"
	"chthabserver/chthab/connection"
	"chthabserver/chthab/database"
	"chthabserver/chthab/session"
	"chthabserver/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const sessionStoreTimeout = 2 * time.Second

// Server accepts websocket connections and wires them to the session engine.
type Server struct {
	Registry   *session.Registry
	Hub        *broadcast.Hub
	Reaper     *session.Reaper
	Tokens     *auth.TokenIssuer
	Sessions   database.SessionStore
	Upgrader   websocket.Upgrader
	NewLimiter func() *rate.Limiter
	Logger     *zap.Logger
}

// NewUpgrader only accepts the listed origins. An empty list or "*" accepts any.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 || allowed["*"] {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// HandleConnections upgrades the request and starts the read and write pumps.
// A valid ?token= inside its grace window resumes the previous identity.
func (s *Server) HandleConnections(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		s.Logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	connectionID, resuming := s.resolveIdentity(ctx, r.URL.Query().Get("token"))

	var limiter *rate.Limiter
	if s.NewLimiter != nil {
		limiter = s.NewLimiter()
	}
	client := broadcast.NewClient(connectionID, conn, limiter)
	s.Hub.Register(client)
	s.Reaper.Touch(connectionID)

	token, err := s.Tokens.Issue(connectionID)
	if err != nil {
		s.Logger.Error("Failed to issue session token", zap.String("connectionID", connectionID), zap.Error(err))
	}
	s.saveSession(ctx, database.SessionRecord{ConnectionID: connectionID, IssuedAt: time.Now()})
	s.Hub.Send(connectionID, models.Message{
		Type: models.EventSession,
		Data: models.SessionInfo{ConnectionID: connectionID, Token: token, Resumed: resuming},
	})

	if resuming {
		if _, ok := s.Registry.Resume(connectionID); !ok {
			s.Logger.Info("Resume lost the race with grace expiry", zap.String("connectionID", connectionID))
		}
	}
	s.Logger.Info("New client added", zap.String("connectionID", connectionID), zap.Bool("resumed", resuming))

	go connection.MaintainWebSocketConnection(client, s.Logger)
	go actions.HandleClient(client, s.Hub, trackedEngine{Registry: s.Registry, sessions: s.Sessions, logger: s.Logger}, s.Reaper, s.Logger)
}

// resolveIdentity returns the connection ID to use and whether it is a resumed one.
func (s *Server) resolveIdentity(ctx context.Context, token string) (string, bool) {
	if token == "" {
		return uuid.New().String(), false
	}
	id, err := s.Tokens.Parse(token)
	if err != nil {
		s.Logger.Info("Ignoring invalid session token", zap.Error(err))
		return uuid.New().String(), false
	}

	ctx, cancel := context.WithTimeout(ctx, sessionStoreTimeout)
	defer cancel()
	rec, err := s.Sessions.Load(ctx, id)
	if err != nil {
		s.Logger.Info("Session not found", zap.String("connectionID", id), zap.Error(err))
		return uuid.New().String(), false
	}
	held, ok := s.Registry.Buffer().Lookup(id)
	if !ok {
		return uuid.New().String(), false
	}
	if held.RoomCode != rec.RoomCode {
		s.Logger.Warn("Session room does not match held seat",
			zap.String("connectionID", id),
			zap.String("sessionRoom", rec.RoomCode),
			zap.String("heldRoom", held.RoomCode))
		return uuid.New().String(), false
	}
	s.Logger.Info("Resuming session", zap.String("connectionID", id), zap.String("roomCode", rec.RoomCode))
	return id, true
}

func (s *Server) saveSession(ctx context.Context, rec database.SessionRecord) {
	ctx, cancel := context.WithTimeout(ctx, sessionStoreTimeout)
	defer cancel()
	if err := s.Sessions.Save(ctx, rec); err != nil {
		s.Logger.Error("Failed to store session", zap.String("connectionID", rec.ConnectionID), zap.Error(err))
	}
}

// trackedEngine notes the player's room in the session store before the grace
// window starts. resolveIdentity only resumes a token whose stored room matches
// the held seat.
type trackedEngine struct {
	*session.Registry
	sessions database.SessionStore
	logger   *zap.Logger
}

func (e trackedEngine) Disconnect(connectionID string) {
	if code, ok := e.RoomOf(connectionID); ok {
		ctx, cancel := context.WithTimeout(context.Background(), sessionStoreTimeout)
		rec, err := e.sessions.Load(ctx, connectionID)
		if err == nil {
			rec.RoomCode = code
			err = e.sessions.Save(ctx, rec)
		}
		cancel()
		if err != nil {
			e.logger.Warn("Failed to update session", zap.String("connectionID", connectionID), zap.Error(err))
		}
	}
	e.Registry.Disconnect(connectionID)
}

package screens

import (
	"net/http"

	"chthabserver/chthab/database"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const historyLimit = 20

// RoundHistory lists the most recent archived rounds of a room. Spies are never archived.
func RoundHistory(c *gin.Context, history database.RoundHistory, logger *zap.Logger) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	records, err := history.Recent(c.Request.Context(), code, historyLimit)
	if err != nil {
		logger.Error("Failed to load round history", zap.String("roomCode", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "history_error",
			"error":  "Could not load round history",
		})
		return
	}

	rounds := make([]gin.H, 0, len(records))
	for _, r := range records {
		rounds = append(rounds, gin.H{
			"category":    r.Category,
			"location":    r.Location,
			"playerCount": r.PlayerCount,
			"startedAt":   r.StartedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"roomCode": code, "rounds": rounds})
}

// Healthz reports liveness and the number of active rooms.
func Healthz(c *gin.Context, rooms func() int) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": rooms()})
}

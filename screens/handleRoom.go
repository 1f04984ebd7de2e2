package screens

import (
	"fmt"
	"net/http"
	"net/url"

	"chthabserver/chthab/session"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrSize = 320

// roomCodeParam normalizes :code and reports a 400 when it is malformed.
func roomCodeParam(c *gin.Context) (string, bool) {
	code := session.NormalizeRoomCode(c.Param("code"))
	if !session.ValidRoomCode(code) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "invalid_room_code",
			"error":  "Room codes are 6 letters or digits",
		})
		return "", false
	}
	return code, true
}

// RoomInfo returns the live snapshot of a room.
func RoomInfo(c *gin.Context, registry *session.Registry) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	data, found := registry.Snapshot(code)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "room_not_found",
			"error":  "No room with that code",
		})
		return
	}
	phase, _ := registry.Phase(code)
	c.JSON(http.StatusOK, gin.H{
		"roomCode": code,
		"players":  data.Players,
		"hostId":   data.HostID,
		"category": data.Category,
		"phase":    phase.String(),
	})
}

// JoinURL is the link encoded in a room's QR code.
func JoinURL(publicURL, code string) string {
	return fmt.Sprintf("%s/lobby?roomCode=%s", publicURL, url.QueryEscape(code))
}

// RoomQRCode renders the room's join link as a PNG. The room does not need to exist
// yet; the first scan creates it.
func RoomQRCode(c *gin.Context, publicURL string, logger *zap.Logger) {
	code, ok := roomCodeParam(c)
	if !ok {
		return
	}
	png, err := qrcode.Encode(JoinURL(publicURL, code), qrcode.Medium, qrSize)
	if err != nil {
		logger.Error("QR generation failed", zap.String("roomCode", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "qr_error",
			"error":  "Could not generate QR code",
		})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

package utils

import (
	"time"

	"chthabserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InitLogger builds a development logger in debug mode and a production one otherwise.
func InitLogger(config models.Config) (*zap.Logger, error) {
	if config.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// RequestLogger is a gin middleware that logs path, status and latency.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

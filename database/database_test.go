package database

import (
	"context"
	"testing"
	"time"

	"chthabserver/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDSN(t *testing.T) {
	dsn := DSN(models.Config{
		DBHost:     "db",
		DBUser:     "chthab",
		DBName:     "chthab",
		DBPassword: "pw",
		DBSSLMode:  "disable",
	})
	assert.Equal(t, "host=db user=chthab dbname=chthab password=pw sslmode=disable", dsn)
}

func TestInitRedisFailsFastWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rdb, err := InitRedis(ctx, models.Config{RedisAddr: "127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, rdb)
}

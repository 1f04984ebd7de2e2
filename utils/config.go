package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"chthabserver/models"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// DefaultSessionSecret signs reconnect tokens when no secret is configured.
const DefaultSessionSecret = "change-me"

// DefaultConfig returns the settings used when config.json leaves a field unset.
func DefaultConfig() models.Config {
	return models.Config{
		Port:                 "8080",
		PublicURL:            "http://localhost:3000",
		ImageDir:             "./public/images",
		DBSSLMode:            "disable",
		SessionSecret:        DefaultSessionSecret,
		SessionTTLHours:      24,
		MaxPlayers:           8,
		MinPlayers:           2,
		GracePeriodSeconds:   10,
		ConnIdleMinutes:      30,
		ConnIdleWarnMinutes:  5,
		RoomIdleMinutes:      60,
		ReaperSchedule:       "@every 30s",
		EventsPerSecond:      5,
		EventBurst:           10,
		HistoryRetentionDays: 30,
	}
}

// LoadConfig loads .env, then config.json over the defaults, then environment
// overrides. A missing file is not an error.
func LoadConfig(filename string) (models.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return models.Config{}, fmt.Errorf("loading .env: %w", err)
	}

	config := DefaultConfig()
	configFile, err := os.Open(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config, err
	default:
		defer configFile.Close()
		if err := json.NewDecoder(configFile).Decode(&config); err != nil {
			return config, fmt.Errorf("decoding %s: %w", filename, err)
		}
	}

	if err := applyEnv(&config); err != nil {
		return config, err
	}
	return config, nil
}

func applyEnv(c *models.Config) error {
	strs := map[string]*string{
		"PORT":           &c.Port,
		"PUBLIC_URL":     &c.PublicURL,
		"IMAGE_DIR":      &c.ImageDir,
		"CATALOG_FILE":   &c.CatalogFile,
		"DB_HOST":        &c.DBHost,
		"DB_USER":        &c.DBUser,
		"DB_PASSWORD":    &c.DBPassword,
		"DB_NAME":        &c.DBName,
		"DB_SSLMODE":     &c.DBSSLMode,
		"REDIS_ADDR":     &c.RedisAddr,
		"REDIS_PASSWORD": &c.RedisPassword,
		"SESSION_SECRET": &c.SessionSecret,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"REDIS_DB":             &c.RedisDB,
		"MAX_PLAYERS":          &c.MaxPlayers,
		"GRACE_PERIOD_SECONDS": &c.GracePeriodSeconds,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG: %w", err)
		}
		c.Debug = debug
	}
	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	return nil
}

// WarnDefaultSecret logs a warning when reconnect tokens are signed with the
// built-in secret. Connection IDs are public inside a room, so anyone could mint
// a token for a dropped player. Reports whether the warning was logged.
func WarnDefaultSecret(config models.Config, logger *zap.Logger) bool {
	if config.SessionSecret != DefaultSessionSecret && config.SessionSecret != "" {
		return false
	}
	logger.Warn("SESSION_SECRET is not set; reconnect tokens use the built-in default secret")
	return true
}

package main

import (
	"chthabserver/database"
	"chthabserver/models"
	"chthabserver/utils"

	"go.uber.org/zap"
)

// Creates the round_records table. The server also migrates at startup; this is
// for provisioning the database ahead of a deploy.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config, err := utils.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if !config.DatabaseEnabled() {
		logger.Fatal("DB_HOST and DB_NAME must be set")
	}

	db, err := database.InitPostgreSQL(config, logger)
	if err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}

	var exists bool
	db.Raw("SELECT exists (SELECT 1 FROM information_schema.tables WHERE table_name = ?)", "round_records").Scan(&exists)
	var count int64
	db.Model(&models.RoundRecord{}).Count(&count)
	logger.Info("round_records ready", zap.Bool("exists", exists), zap.Int64("rows", count))
}

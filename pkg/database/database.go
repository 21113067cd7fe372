package database

import (
	"movefuzz/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDBConnection opens the crash ledger. It returns nil when DATABASE_URL is unset.
func NewDBConnection(appConfig *config.AppConfig, logger *zap.Logger) (*gorm.DB, error) {
	if appConfig.DatabaseURL == "" {
		return nil, nil
	}
	db, err := gorm.Open(postgres.Open(appConfig.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect database", zap.Error(err))
		return nil, err
	}
	if err := db.AutoMigrate(&Crash{}); err != nil {
		logger.Error("failed to migrate crash table", zap.Error(err))
		return nil, err
	}
	logger.Debug("connected to database")
	return db, nil
}

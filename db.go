package main

import (
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/louisvcarpet/offergo/models"
)

var db *gorm.DB

func initDB(cfg *Config) error {
	var err error
	db, err = gorm.Open(postgres.Open(cfg.DBDsn), &gorm.Config{})
	if err != nil {
		return err
	}
	if cfg.DBAutoMigrate {
		// Migrate models individually so a failure on one doesn't block others
		if err := db.AutoMigrate(&models.User{}); err != nil {
			logger.Warn("migration warning (users)", zap.Error(err))
		}
		if err := db.AutoMigrate(&models.Profile{}); err != nil {
			logger.Warn("migration warning (profiles)", zap.Error(err))
		}
		if err := db.AutoMigrate(&models.OfferUpload{}); err != nil {
			logger.Warn("migration warning (offer_uploads)", zap.Error(err))
		}
	}
	seedDB(cfg)
	return nil
}

// seedDB ensures the demo account and its empty profile exist, plus the
// upload directory. Idempotent so it can run on every start.
func seedDB(cfg *Config) {
	var count int64
	db.Model(&models.User{}).Where("email = ?", cfg.DemoEmail).Count(&count)
	if count == 0 {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(cfg.DemoPassword), bcrypt.DefaultCost)
		demo := models.User{Email: cfg.DemoEmail, HashedPassword: hashed}
		if err := db.Create(&demo).Error; err != nil {
			logger.Warn("failed to seed demo user", zap.Error(err))
		} else {
			logger.Info("seeded demo user", zap.String("email", cfg.DemoEmail))
		}
	}
	var demo models.User
	if err := db.Where("email = ?", cfg.DemoEmail).First(&demo).Error; err != nil {
		logger.Warn("demo user missing after seeding", zap.Error(err))
		return
	}
	var pcount int64
	db.Model(&models.Profile{}).Where("user_id = ?", demo.ID).Count(&pcount)
	if pcount == 0 {
		if err := db.Create(&models.Profile{UserID: demo.ID}).Error; err != nil {
			logger.Warn("failed to create demo profile", zap.Error(err))
		}
	}
	if err := os.MkdirAll(cfg.UploadBase, 0o755); err != nil {
		logger.Warn("failed to create upload base dir", zap.String("dir", cfg.UploadBase), zap.Error(err))
	}
}

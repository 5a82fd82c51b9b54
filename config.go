package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration, sourced from the environment
// with an optional local .env file.
type Config struct {
	Port          int    `mapstructure:"PORT"`
	DBDsn         string `mapstructure:"DB_DSN"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	OfferAPIBaseURL string `mapstructure:"OFFER_API_BASE_URL"`
	OfferAPIUserID  string `mapstructure:"OFFER_API_USER_ID"`

	JWTSecret  string `mapstructure:"JWT_SECRET"`
	UploadBase string `mapstructure:"UPLOAD_BASE"`

	DemoEmail    string `mapstructure:"DEMO_EMAIL"`
	DemoPassword string `mapstructure:"DEMO_PASSWORD"`

	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Fallback multipliers for the market comparison; tunable policy, not law.
	MarketRatioAccept    float64 `mapstructure:"MARKET_RATIO_ACCEPT"`
	MarketRatioOtherwise float64 `mapstructure:"MARKET_RATIO_OTHERWISE"`
	MarketRatioOffer     float64 `mapstructure:"MARKET_RATIO_OFFER"`
}

func loadConfig() (*Config, error) {
	// .env is a local convenience; absence is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", 8081)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("OFFER_API_BASE_URL", "http://localhost:8000")
	v.SetDefault("OFFER_API_USER_ID", "1")
	v.SetDefault("JWT_SECRET", "dev-insecure-secret-change")
	v.SetDefault("UPLOAD_BASE", "uploads")
	v.SetDefault("DEMO_EMAIL", "demo@offergo.app")
	v.SetDefault("DEMO_PASSWORD", "demo123")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MARKET_RATIO_ACCEPT", 0.95)
	v.SetDefault("MARKET_RATIO_OTHERWISE", 1.2)
	v.SetDefault("MARKET_RATIO_OFFER", 0.75)
	v.AutomaticEnv()

	// AutomaticEnv alone does not populate Unmarshal; bind each key explicitly.
	for _, key := range []string{
		"PORT", "DB_DSN", "DB_AUTO_MIGRATE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"OFFER_API_BASE_URL", "OFFER_API_USER_ID",
		"JWT_SECRET", "UPLOAD_BASE",
		"DEMO_EMAIL", "DEMO_PASSWORD", "LOG_LEVEL",
		"MARKET_RATIO_ACCEPT", "MARKET_RATIO_OTHERWISE", "MARKET_RATIO_OFFER",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DBDsn == "" {
		return nil, fmt.Errorf("DB_DSN is not set; a Postgres DSN is required")
	}
	return &cfg, nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/louisvcarpet/offergo/pkg/market"
	"github.com/louisvcarpet/offergo/pkg/offerapi"
	"github.com/louisvcarpet/offergo/pkg/session"
)

func main() {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	logger = newLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	jwtSecret = []byte(cfg.JWTSecret)
	ratioPolicy = market.RatioPolicy{
		MarketWhenAccept: cfg.MarketRatioAccept,
		MarketOtherwise:  cfg.MarketRatioOtherwise,
		OfferFromMarket:  cfg.MarketRatioOffer,
	}

	if err := initDB(cfg); err != nil {
		logger.Fatal("failed to connect postgres database", zap.Error(err))
	}
	profiles = newGormProfileStore(db)
	authenticator = newDemoAuthenticator(cfg.DemoEmail)

	redisStore := session.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisStore.Ping(ctx); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	sessions = redisStore

	apiClient = offerapi.New(cfg.OfferAPIBaseURL, cfg.OfferAPIUserID)

	r := gin.Default()
	r.Use(metricsMiddleware())
	setupRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("offergo listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	switch level {
	case "debug":
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zcfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	l, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return l
}

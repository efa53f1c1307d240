package queue

import (
	"context"
	"time"

	"codeclash/internal/platform/config"
	"codeclash/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

func ConnectRedis() {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := RDB.Ping(ctx).Result(); err != nil {
		logger.Fatal(ctx, "could not connect to redis", zap.String("addr", config.AppConfig.RedisAddr), zap.Error(err))
	}
	logger.Info(ctx, "connected to redis", zap.String("addr", config.AppConfig.RedisAddr))
}

func CloseRedis() {
	if RDB != nil {
		if err := RDB.Close(); err != nil {
			logger.Warn(context.Background(), "error closing redis", zap.Error(err))
			return
		}
		logger.Info(context.Background(), "redis connection closed")
	}
}

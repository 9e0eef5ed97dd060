package database

import (
	"context"
	"fmt"
	"time"

	"chat_relay_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NewRedisClient init Redis connection
func NewRedisClient(r RedisConnection) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     r.Addr,
		Password: "", // Redis 密码（如有需要）
		DB:       r.DB,
	})

	// 測試連線
	var err error
	for i := 0; i < r.RetryCount; i++ {
		if err = rdb.Ping(context.Background()).Err(); err == nil {
			return rdb, nil
		}
		logger.Log.Warn(
			"Failed to connect to redis, retrying...",
			zap.Int("attempt", i+1),
			zap.String("address", r.Addr),
			zap.Error(err),
		)
		time.Sleep(r.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to redis: %w", err)
}

package cache

import (
	"context"
	"fmt"
	"time"

	"escrowledger/internal/config"
	"escrowledger/internal/logger"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis: %v", err)
	}

	RedisClient = client
	logger.Info("redis connected: %s:%d", cfg.Host, cfg.Port)
	return client
}

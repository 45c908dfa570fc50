package cache

import (
	"context"
	"fmt"
	"time"

	"rispay/internal/config"
	"rispay/internal/logger"

	"github.com/go-redis/redis/v8"
)

// InitRedis 连接 Redis，目前只用于任务的分布式锁
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     Addr(cfg),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	logger.Infof("[Redis] 连接成功: %s", Addr(cfg))
	return client, nil
}

func Addr(cfg *config.RedisConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

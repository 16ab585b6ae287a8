package client

import (
	"Swan/config"
	"Swan/pkg/log"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient 快速层是可选的：未开启或连接失败时返回 nil，引擎只走数据库
func NewRedisClient(conf *config.Config) *redis.Client {
	if !conf.Redis.Enabled {
		log.L.Info("redis disabled, gamification runs durable-only")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         conf.Redis.Addr(),
		Password:     conf.Redis.Password,
		Username:     conf.Redis.Username,
		DB:           conf.Redis.Database,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.L.Warn("connect redis error, gamification runs durable-only", zap.Error(err))
		_ = client.Close()
		return nil
	}
	log.L.Info("redis client success")
	return client
}

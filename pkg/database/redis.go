package database

import (
	"context"
	"fmt"
	"movefuzz/config"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

type RedisParams struct {
	fx.In

	Config    *config.AppConfig
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

// NewRedisClient connects to REDIS_URL, or to the sentinel-managed master
// REDIS_MASTER when only REDIS_SENTINEL_HOSTS is set. It returns nil when
// neither is configured.
func NewRedisClient(p RedisParams) (*redis.Client, error) {
	client, err := redisClientFor(p.Config)
	if err != nil || client == nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		p.Logger.Error("redis is unreachable", zap.Error(err))
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	p.Logger.Debug("redis client created")
	return client, nil
}

func redisClientFor(cfg *config.AppConfig) (*redis.Client, error) {
	switch {
	case cfg.RedisUrl != "":
		opts, err := redis.ParseURL(cfg.RedisUrl)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		return redis.NewClient(opts), nil
	case cfg.RedisSentinelHosts != "":
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.RedisMasterName,
			SentinelAddrs: strings.Split(cfg.RedisSentinelHosts, ","),
		}), nil
	default:
		return nil, nil
	}
}

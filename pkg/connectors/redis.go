package connectors

import (
	"context"
	"fmt"

	"github.com/jjpp222/tutor-aleman-backend/config"
	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
	"github.com/redis/go-redis/v9"
)

// RedisConnector hands out the shared redis client, used for the out-of-band
// mix trigger queue.
type RedisConnector interface {
	Client() *redis.Client
	Ping(ctx context.Context) error
	Close() error
}

type redisConnector struct {
	client *redis.Client
	logger commons.Logger
}

func NewRedisConnector(cfg *config.AppConfig, logger commons.Logger) (RedisConnector, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisConfig.Host, cfg.RedisConfig.Port),
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.Db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect redis: %w", err)
	}

	logger.Infof("redis connected: host=%s", cfg.RedisConfig.Host)
	return &redisConnector{client: client, logger: logger}, nil
}

func (r *redisConnector) Client() *redis.Client {
	return r.client
}

func (r *redisConnector) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisConnector) Close() error {
	return r.client.Close()
}

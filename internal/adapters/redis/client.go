package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"CasaBid/internal/shared/config"
)

// NewClient connects and pings. The caller closes the client.
func NewClient(ctx context.Context, cfg config.RedisConfig, baseLogger *zerolog.Logger) (*goredis.Client, error) {
	log := baseLogger.With().Str("component", "redis").Logger()

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error().Err(err).Str("addr", cfg.Addr).Msg("Failed to ping redis")
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Msg("Redis connection established")
	return rdb, nil
}

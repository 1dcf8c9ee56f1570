package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/realtime"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// change-relay forwards PostgreSQL change notifications to Redis pub/sub so every
// api-server replica can invalidate its cache. Run exactly one per database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("change-relay", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("change-relay", cfg.Env, cfg.LogLevel)
	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("REDIS_ADDR is required")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()

	relay := realtime.NewRelay(cfg.PostgresDSN, realtime.NewRedisFeed(rdb, logger), cfg.RelayReconnect, logger)

	logger.Info().Str("env", cfg.Env).Dur("reconnect", cfg.RelayReconnect).Msg("change-relay starting up")
	if err := relay.Run(rootCtx); err != nil {
		logger.Error().Err(err).Msg("relay stopped with error")
		return
	}
	logger.Info().Msg("shutdown signal received, change-relay stopped")
}

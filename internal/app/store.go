//go:build !js || !wasm

package app

import (
	"fmt"

	"github.com/dvcrn/reserve-client/internal/config"
	"github.com/dvcrn/reserve-client/internal/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewStore opens the credential backend selected in cfg.
func NewStore(cfg *config.Config, logger zerolog.Logger) (credentials.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreFS:
		path := cfg.Store.Path
		if path == "" {
			path = credentials.DefaultCredsPath()
		}
		logger.Info().Str("path", path).Msg("📄 Using filesystem credential store")
		return credentials.NewFSStore(path), nil

	case config.StoreKeychain:
		logger.Info().Str("service", cfg.Store.KeychainService).Msg("🔑 Using keychain credential store")
		return credentials.NewKeychainStoreWithLogger(cfg.Store.KeychainService, logger), nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("🗄️  Using redis credential store")
		return credentials.NewRedisStore(client, cfg.Redis.Prefix), nil

	case config.StoreMemory:
		logger.Warn().Msg("⚠️  Using in-memory credential store, tokens are lost on exit")
		return credentials.NewMemoryStore(), nil

	case config.StoreEnv:
		logger.Info().Msg("📝 Using environment credential store (read-only)")
		return credentials.NewEnvStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

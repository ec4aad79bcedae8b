//go:build js && wasm

package main

import (
	"context"
	"time"

	"github.com/dvcrn/reserve-client/internal/app"
	"github.com/dvcrn/reserve-client/internal/auth"
	"github.com/dvcrn/reserve-client/internal/config"
	"github.com/dvcrn/reserve-client/internal/credentials"
	"github.com/dvcrn/reserve-client/internal/logger"
	"github.com/syumai/workers"
	"github.com/syumai/workers/cloudflare"
)

func main() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: cloudflare.Getenv("LOG_LEVEL"),
		API: config.APIConfig{
			BaseURL:     cloudflare.Getenv("API_BASE_URL"),
			RefreshPath: auth.DefaultRefreshPath,
			Timeout:     60 * time.Second,
		},
		HTTP: config.HTTPConfig{
			AdminAPIKey: cloudflare.Getenv("ADMIN_API_KEY"),
		},
	}

	log := logger.New(cfg.Env, cfg.LogLevel)

	log.Info().Msg("📦 Using Cloudflare KV credential store")
	store, err := credentials.NewKVStore(cloudflare.Getenv("KV_NAMESPACE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloudflare KV store")
	}

	a := app.New(cfg, store, log)
	a.Bootstrap(context.Background())

	// Serve using workers - it handles all the HTTP server setup
	workers.Serve(a.NewServer())
}

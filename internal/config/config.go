// Package config loads runtime configuration.
//
// Sources, highest priority first:
//  1. explicit --config path;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. environment only.
//
// Environment variables always overlay values read from a file.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Store backends accepted by StoreConfig.Backend.
const (
	StoreFS       = "fs"
	StoreKeychain = "keychain"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
	StoreEnv      = "env"
)

type Config struct {
	Env      string      `yaml:"env"       env:"ENV"       env-default:"development"`
	LogLevel string      `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	API      APIConfig   `yaml:"api"`
	Store    StoreConfig `yaml:"store"`
	Redis    RedisConfig `yaml:"redis"`
	HTTP     HTTPConfig  `yaml:"http"`
}

// APIConfig describes the remote reservation API.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url"         env:"API_BASE_URL"         env-default:"http://127.0.0.1:8000/api"`
	RefreshPath     string        `yaml:"refresh_path"     env:"API_REFRESH_PATH"     env-default:"/refresh"`
	Timeout         time.Duration `yaml:"timeout"          env:"API_TIMEOUT"          env-default:"60s"`
	CoalesceRefresh bool          `yaml:"coalesce_refresh" env:"API_COALESCE_REFRESH" env-default:"false"`
}

// StoreConfig selects where the credential pair is persisted.
type StoreConfig struct {
	Backend         string `yaml:"backend"          env:"STORE_BACKEND"          env-default:"fs"`
	Path            string `yaml:"path"             env:"STORE_PATH"`
	KeychainService string `yaml:"keychain_service" env:"STORE_KEYCHAIN_SERVICE" env-default:"reserve-client-credentials"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"REDIS_ADDR"     env-default:"127.0.0.1:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"REDIS_DB"       env-default:"0"`
	Prefix   string `yaml:"prefix"   env:"REDIS_PREFIX"   env-default:"reserve_client:"`
}

// HTTPConfig is the local session proxy listener.
type HTTPConfig struct {
	Host        string `yaml:"host"          env:"HTTP_HOST"     env-default:"127.0.0.1"`
	Port        string `yaml:"port"          env:"PORT"          env-default:"9879"`
	AdminAPIKey string `yaml:"admin_api_key" env:"ADMIN_API_KEY"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// Validate rejects configurations that cannot be wired.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	switch c.Store.Backend {
	case StoreFS, StoreKeychain, StoreRedis, StoreMemory, StoreEnv:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	return nil
}

// MustLoad panics when Load fails.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return finish(&cfg)
	}

	if path != "" {
		return readFile(path)
	}

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}

	if _, err := os.Stat("local.yaml"); err == nil {
		return readFile("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	return finish(&cfg)
}

// finish validates cfg. cleanenv.ReadConfig already overlays the environment.
func finish(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

package config

import (
	"errors"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

var ErrPostgresDSNRequired = errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")

type ServerConfig struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	AutoMigrate bool   `env:"POSTGRES_AUTO_MIGRATE" envDefault:"false"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"tmp/galaxy.sqlite"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	PushEnabled     bool   `env:"PUSH_ENABLED" envDefault:"false"`
	PushTargetsPath string `env:"PUSH_TARGETS_PATH"`
	PushTargetsJSON string `env:"PUSH_TARGETS_JSON"`
	PushWorkers     int    `env:"PUSH_WORKERS" envDefault:"2"`
	PushRetryMax    int    `env:"PUSH_RETRY_MAX" envDefault:"3"`
	PushRetryBaseMS int    `env:"PUSH_RETRY_BASE_MS" envDefault:"500"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return cfg, ErrPostgresDSNRequired
		}
	case StoreDriverSQLite, StoreDriverMemory:
	default:
		return cfg, errors.New("unsupported STORE_DRIVER: " + cfg.StoreDriver)
	}
	return cfg, nil
}

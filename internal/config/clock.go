package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ClockConfig struct {
	TickInterval    time.Duration `env:"CLOCK_TICK_INTERVAL" envDefault:"1s"`
	MaxCatchupTicks int64         `env:"CLOCK_MAX_CATCHUP_TICKS" envDefault:"86400"`
	SyncEveryTicks  int           `env:"CLOCK_SYNC_EVERY_TICKS" envDefault:"10"`
	// Sessions are registered (and caught up) at startup.
	Sessions []string `env:"CLOCK_SESSIONS" envSeparator:","`
}

func LoadClock() (ClockConfig, error) {
	var cfg ClockConfig
	err := env.Parse(&cfg)
	return cfg, err
}

package config

import (
	"errors"
	"fmt"
)

type AppConfig struct {
	Server  ServerConfig
	Log     LogConfig
	Clock   ClockConfig
	Command CommandConfig
}

// LoadApp reads every section and reports all problems at once, so a bad
// deployment shows each broken variable in one log line.
func LoadApp() (AppConfig, error) {
	var cfg AppConfig
	var errs []error
	collect := func(err error, section string) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	var err error
	cfg.Log, err = LoadLog()
	collect(err, "log")
	cfg.Server, err = LoadServer()
	collect(err, "server")
	cfg.Clock, err = LoadClock()
	collect(err, "clock")
	cfg.Command, err = LoadCommand()
	collect(err, "command")
	if len(errs) > 0 {
		return AppConfig{}, errors.Join(errs...)
	}
	return cfg, nil
}

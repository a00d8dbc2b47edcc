package config

import "github.com/caarlos0/env/v11"

type CommandConfig struct {
	DebitAttempts       int   `env:"COMMAND_DEBIT_ATTEMPTS" envDefault:"3"`
	SubstitutionPenalty int64 `env:"COMMAND_SUBSTITUTION_PENALTY" envDefault:"2"`

	RecoveryEveryTicks int64 `env:"LEDGER_RECOVERY_EVERY_TICKS" envDefault:"0"`
	RecoveryAmount     int64 `env:"LEDGER_RECOVERY_AMOUNT" envDefault:"1"`
}

func LoadCommand() (CommandConfig, error) {
	var cfg CommandConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// Package config resolves the stack machine's ambient settings —
// stack capacity and default trace mode — from the environment via
// struct tags.
package config

import "github.com/caarlos0/env/v6"

// Config holds the settings the CLI driver can source from the
// environment before flags are applied on top.
type Config struct {
	StackSize int  `env:"VSM_STACK_SIZE" envDefault:"65536"`
	Trace     bool `env:"VSM_TRACE" envDefault:"false"`
}

// Load reads Config from the process environment, falling back to the
// struct tag defaults for anything unset.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

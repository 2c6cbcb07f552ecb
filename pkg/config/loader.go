package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Option adjusts how Load reads the environment.
type Option func(*env.Options)

// WithEnvironment reads values from vars instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) { o.Environment = vars }
}

// WithPrefix prepends prefix to every env tag, e.g. "STORECTL_".
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// Load parses environment variables into cfg, which must be a pointer to a
// struct using `env` and `envDefault` tags:
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any, opts ...Option) error {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

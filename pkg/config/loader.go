package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option tunes a single Load call.
type Option func(*options)

type options struct {
	envFiles    []string
	prefix      string
	environment map[string]string
}

// WithEnvFiles loads the given dotenv files before parsing. Missing files are
// skipped; values already present in the process environment win.
func WithEnvFiles(files ...string) Option {
	return func(o *options) {
		o.envFiles = append(o.envFiles, files...)
	}
}

// WithPrefix prepends prefix to every env tag, e.g. "TEST_" + "NOTIFY_WS_URL".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithEnvironment parses from the given map instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *options) {
		o.environment = vars
	}
}

// Load parses environment variables into a new value of T using `env` struct tags.
//
// Example:
//
//	type Config struct {
//		URL     string        `env:"NOTIFY_WS_URL,required"`
//		Retries int           `env:"NOTIFY_RECONNECT_RETRIES" envDefault:"5"`
//		Base    time.Duration `env:"NOTIFY_RECONNECT_BASE" envDefault:"1s"`
//	}
//
//	cfg, err := config.Load[Config](config.WithEnvFiles(".env"))
func Load[T any](opts ...Option) (T, error) {
	var cfg T

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	for _, file := range o.envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, errors.Join(ErrLoadingEnvFile, fmt.Errorf("%s: %w", file, err))
		}
	}

	parseOpts := env.Options{Prefix: o.prefix}
	if o.environment != nil {
		parseOpts.Environment = o.environment
	}

	if err := env.ParseWithOptions(&cfg, parseOpts); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}

	return cfg, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}

// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv (optional .env files) and
// github.com/caarlos0/env/v11 (struct tag parsing):
//
//	type Config struct {
//		URL string `env:"NOTIFY_WS_URL,required"`
//	}
//
//	cfg, err := config.Load[Config](config.WithEnvFiles(".env"))
//
// Load keeps no package state; every call parses afresh, so tests can feed a
// map through WithEnvironment without touching the process environment.
package config

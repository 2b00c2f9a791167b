package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/config"
)

type testConfig struct {
	URL     string        `env:"WS_URL,required"`
	Retries int           `env:"RETRIES" envDefault:"5"`
	Base    time.Duration `env:"BASE" envDefault:"1s"`
	Flag    bool          `env:"FLAG" envDefault:"true"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Load[testConfig](config.WithEnvironment(map[string]string{
			"WS_URL": "ws://localhost:8080/ws",
		}))
		require.NoError(t, err)
		assert.Equal(t, "ws://localhost:8080/ws", cfg.URL)
		assert.Equal(t, 5, cfg.Retries)
		assert.Equal(t, time.Second, cfg.Base)
		assert.True(t, cfg.Flag)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := config.Load[testConfig](config.WithEnvironment(map[string]string{
			"WS_URL":  "ws://example.com",
			"RETRIES": "2",
			"BASE":    "250ms",
			"FLAG":    "false",
		}))
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Retries)
		assert.Equal(t, 250*time.Millisecond, cfg.Base)
		assert.False(t, cfg.Flag)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := config.Load[testConfig](config.WithEnvironment(map[string]string{}))
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := config.Load[testConfig](config.WithEnvironment(map[string]string{
			"WS_URL":  "ws://example.com",
			"RETRIES": "many",
		}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("prefix", func(t *testing.T) {
		cfg, err := config.Load[testConfig](
			config.WithPrefix("APP_"),
			config.WithEnvironment(map[string]string{"APP_WS_URL": "ws://prefixed"}),
		)
		require.NoError(t, err)
		assert.Equal(t, "ws://prefixed", cfg.URL)
	})
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("CFGTEST_WS_URL=ws://from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CFGTEST_WS_URL") })

	cfg, err := config.Load[testConfig](
		config.WithPrefix("CFGTEST_"),
		config.WithEnvFiles(file, filepath.Join(dir, "missing.env")),
	)
	require.NoError(t, err)
	assert.Equal(t, "ws://from-file", cfg.URL)
}

func TestMustLoad(t *testing.T) {
	assert.Panics(t, func() {
		config.MustLoad[testConfig](config.WithEnvironment(map[string]string{}))
	})
}

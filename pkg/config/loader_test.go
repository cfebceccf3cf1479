package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/togglekit/pkg/config"
)

type testConfig struct {
	File     string        `env:"FILE"`
	RedisURL string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	TTL      time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	Features []string      `env:"FEATURES" envSeparator:","`
	Strict   bool          `env:"STRICT"`
}

type requiredConfig struct {
	Token string `env:"TOKEN,required"`
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.Load[testConfig](config.WithEnvironment(map[string]string{}))
		require.NoError(t, err)
		assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
		assert.Equal(t, time.Hour, cfg.TTL)
		assert.Empty(t, cfg.File)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.Load[testConfig](
			config.WithPrefix("FEATURECTL_"),
			config.WithEnvironment(map[string]string{
				"FEATURECTL_FILE":      "/etc/features.properties",
				"FEATURECTL_FEATURES":  "A,B",
				"FEATURECTL_CACHE_TTL": "5m",
				"FILE":                 "ignored",
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, "/etc/features.properties", cfg.File)
		assert.Equal(t, []string{"A", "B"}, cfg.Features)
		assert.Equal(t, 5*time.Minute, cfg.TTL)
	})

	t.Run("env file below environment", func(t *testing.T) {
		t.Parallel()
		path := writeEnvFile(t, "FILE=from-file\nSTRICT=true\nREDIS_URL=\"redis://file:6379/1\"\n")

		cfg, err := config.Load[testConfig](
			config.WithEnvFiles(path),
			config.WithEnvironment(map[string]string{"FILE": "from-env"}),
		)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.File)
		assert.True(t, cfg.Strict)
		assert.Equal(t, "redis://file:6379/1", cfg.RedisURL)
	})

	t.Run("missing env file", func(t *testing.T) {
		t.Parallel()
		missing := filepath.Join(t.TempDir(), "nope.env")

		_, err := config.Load[testConfig](config.WithEnvFiles(missing), config.WithEnvironment(map[string]string{}))
		require.ErrorIs(t, err, config.ErrEnvFile)

		_, err = config.Load[testConfig](config.WithOptionalEnvFiles(missing), config.WithEnvironment(map[string]string{}))
		require.NoError(t, err)
	})

	t.Run("required", func(t *testing.T) {
		t.Parallel()
		_, err := config.Load[requiredConfig](config.WithEnvironment(map[string]string{}))
		require.ErrorIs(t, err, config.ErrParsingConfig)

		assert.Panics(t, func() {
			config.MustLoad[requiredConfig](config.WithEnvironment(map[string]string{}))
		})

		cfg := config.MustLoad[requiredConfig](config.WithEnvironment(map[string]string{"TOKEN": "t"}))
		assert.Equal(t, "t", cfg.Token)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Parallel()
		_, err := config.Load[testConfig](config.WithEnvironment(map[string]string{"CACHE_TTL": "soon"}))
		require.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("TOGGLEKIT_TEST_FILE", "from-process")

	cfg, err := config.Load[testConfig](config.WithPrefix("TOGGLEKIT_TEST_"))
	require.NoError(t, err)
	assert.Equal(t, "from-process", cfg.File)
}

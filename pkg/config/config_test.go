package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "panic", cfg.LogLevel)
	assert.Equal(t, BackendAuto, cfg.Backend)
	assert.Equal(t, 256, cfg.QueueCapacity)
	assert.Equal(t, uint32(1024), cfg.SpillCapacity)
	assert.Equal(t, 30*time.Second, cfg.LostTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.ScanStartGrace)
	assert.True(t, cfg.Duplicates)
	assert.Equal(t, OutputFormatText, cfg.OutputFormat)
	assert.NoError(t, cfg.Validate(), "defaults MUST be valid")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			want:     logrus.DebugLevel,
		},
		{
			name:     "creates logger with info level",
			logLevel: "info",
			want:     logrus.InfoLevel,
		},
		{
			name:     "creates logger with warn level",
			logLevel: "warn",
			want:     logrus.WarnLevel,
		},
		{
			name:     "creates logger with error level",
			logLevel: "error",
			want:     logrus.ErrorLevel,
		},
		{
			name:     "unknown level falls back to silent",
			logLevel: "chatty",
			want:     logrus.PanicLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel: tt.logLevel,
			}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{
			name:   "json format is valid",
			mutate: func(c *Config) { c.OutputFormat = OutputFormatJSON },
			valid:  true,
		},
		{
			name:   "unknown format",
			mutate: func(c *Config) { c.OutputFormat = "xml" },
		},
		{
			name:   "bluez backend is valid",
			mutate: func(c *Config) { c.Backend = BackendBlueZ },
			valid:  true,
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Backend = "winrt" },
		},
		{
			name:   "zero queue capacity",
			mutate: func(c *Config) { c.QueueCapacity = 0 },
		},
		{
			name:   "negative queue capacity",
			mutate: func(c *Config) { c.QueueCapacity = -1 },
		},
		{
			name:   "zero spill capacity",
			mutate: func(c *Config) { c.SpillCapacity = 0 },
		},
		{
			name:   "huge spill capacity",
			mutate: func(c *Config) { c.SpillCapacity = 1<<20 + 1 },
		},
		{
			name:   "lost detection disabled",
			mutate: func(c *Config) { c.LostTimeout = 0 },
			valid:  true,
		},
		{
			name:   "negative lost timeout",
			mutate: func(c *Config) { c.LostTimeout = -time.Second },
		},
		{
			name:   "zero start grace",
			mutate: func(c *Config) { c.ScanStartGrace = 0 },
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.LogLevel = "loud" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(dir, "blewatch.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backend: hci\nqueue_capacity: 32\nlost_timeout: 5s\nduplicates: false\n"), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, BackendHCI, cfg.Backend)
		assert.Equal(t, 32, cfg.QueueCapacity)
		assert.Equal(t, 5*time.Second, cfg.LostTimeout)
		assert.False(t, cfg.Duplicates, "explicit false MUST NOT be replaced by the default")
		assert.Equal(t, uint32(1024), cfg.SpillCapacity, "unset fields MUST keep defaults")
	})

	t.Run("empty file returns defaults", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		path := filepath.Join(dir, "typo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("queue_capacty: 32\n"), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("output_format: xml\n"), 0o644))

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestConfig_ZeroValues(t *testing.T) {
	cfg := &Config{}

	// Test that zero values don't cause panics
	logger := cfg.NewLogger()
	assert.NotNil(t, logger)

	// Empty log level falls back to PanicLevel (0)
	assert.Equal(t, logrus.PanicLevel, logger.GetLevel())
	assert.Error(t, cfg.Validate())
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}

func BenchmarkConfig_NewLogger(b *testing.B) {
	cfg := DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.NewLogger()
	}
}

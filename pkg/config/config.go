package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Backends selectable with the backend setting
const (
	BackendAuto          = "auto"
	BackendBlueZ         = "bluez"
	BackendHCI           = "hci"
	BackendCoreBluetooth = "corebluetooth"
)

// Event output formats
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
)

const maxSpillCapacity = 1 << 20

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"panic"`
	Backend        string        `yaml:"backend" default:"auto"`
	QueueCapacity  int           `yaml:"queue_capacity" default:"256"`
	SpillCapacity  uint32        `yaml:"spill_capacity" default:"1024"`
	LostTimeout    time.Duration `yaml:"lost_timeout" default:"30s"`
	ScanStartGrace time.Duration `yaml:"scan_start_grace" default:"250ms"`
	Duplicates     bool          `yaml:"duplicates" default:"true"`
	OutputFormat   string        `yaml:"output_format" default:"text"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalidConfig, err)
	}

	switch c.Backend {
	case BackendAuto, BackendBlueZ, BackendHCI, BackendCoreBluetooth:
	default:
		return fmt.Errorf("%w: unknown backend %q (want auto, bluez, hci or corebluetooth)", ErrInvalidConfig, c.Backend)
	}

	switch c.OutputFormat {
	case OutputFormatText, OutputFormatJSON:
	default:
		return fmt.Errorf("%w: unknown output_format %q (want text or json)", ErrInvalidConfig, c.OutputFormat)
	}

	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue_capacity must be positive, got %d", ErrInvalidConfig, c.QueueCapacity)
	}
	if c.SpillCapacity == 0 || c.SpillCapacity > maxSpillCapacity {
		return fmt.Errorf("%w: spill_capacity must be in 1..%d, got %d", ErrInvalidConfig, maxSpillCapacity, c.SpillCapacity)
	}
	if c.LostTimeout < 0 {
		return fmt.Errorf("%w: lost_timeout must not be negative", ErrInvalidConfig)
	}
	if c.ScanStartGrace <= 0 {
		return fmt.Errorf("%w: scan_start_grace must be positive", ErrInvalidConfig)
	}
	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.PanicLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

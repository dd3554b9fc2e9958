package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blewatch/pkg/config"
)

// loadConfig reads --config and applies the flags the user set on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
	}
	if f := flags.Lookup("format"); f != nil && f.Changed {
		cfg.OutputFormat = f.Value.String()
	}
	if f := flags.Lookup("queue-size"); f != nil && f.Changed {
		cfg.QueueCapacity, _ = flags.GetInt("queue-size")
	}
	if f := flags.Lookup("spill-size"); f != nil && f.Changed {
		cfg.SpillCapacity, _ = flags.GetUint32("spill-size")
	}
	if f := flags.Lookup("lost-timeout"); f != nil && f.Changed {
		cfg.LostTimeout, _ = flags.GetDuration("lost-timeout")
	}
	if f := flags.Lookup("no-duplicates"); f != nil && f.Changed {
		noDup, _ := flags.GetBool("no-duplicates")
		cfg.Duplicates = !noDup
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configureLogger creates the logger from the resolved config, writing to the command's
// stderr. Default is panic level, essentially silent, so stdout carries only events.
func configureLogger(cmd *cobra.Command, cfg *config.Config) *logrus.Logger {
	logger := cfg.NewLogger()
	logger.SetOutput(cmd.ErrOrStderr())
	return logger
}

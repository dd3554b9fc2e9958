package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blewatch/internal/central"
	"github.com/srg/blewatch/internal/platform"
	"github.com/srg/blewatch/internal/roster"
	"github.com/srg/blewatch/pkg/config"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan and print peripheral lifecycle events",
	Long: `Scan with the first Bluetooth adapter and print every peripheral lifecycle
event as it happens, in the order the platform reported it.

Runs until Ctrl+C or until --duration elapses, then prints a summary of the
peripherals seen. Events still queued at shutdown are printed before exiting.`,
	Example: `  blewatch watch
  blewatch watch --duration 30s --format json
  blewatch watch --backend hci --lost-timeout 10s`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

// newManager builds the adapter provider (can be overridden in tests)
var newManager = platform.NewManager

// interruptSignals end a watch voluntarily
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func init() {
	watchCmd.Flags().DurationP("duration", "d", 0, "Watch duration (0 for until Ctrl+C)")
	watchCmd.Flags().StringP("format", "f", config.OutputFormatText, "Output format (text, json)")
	watchCmd.Flags().Int("queue-size", central.DefaultQueueCapacity, "Event queue capacity")
	watchCmd.Flags().Uint32("spill-size", central.DefaultSpillCapacity, "Events buffered while the queue is full")
	watchCmd.Flags().Duration("lost-timeout", 30*time.Second, "Silence after which a peripheral is reported lost (hci, corebluetooth)")
	watchCmd.Flags().Bool("no-duplicates", false, "Report each advertiser once instead of every advertisement")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	duration, _ := cmd.Flags().GetDuration("duration")

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	logger := configureLogger(cmd, cfg)

	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logger.WithError(err).Debug("Manager close failed")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), interruptSignals...)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	return watch(ctx, cmd, cfg, manager, logger)
}

func watch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, manager central.Manager, logger *logrus.Logger) error {
	out := cmd.OutOrStdout()
	seen := roster.New()
	printer := newEventPrinter(out, cfg.OutputFormat)

	session := central.NewSession(manager, central.Multi(printer, seen),
		central.WithLogger(logger),
		central.WithQueueCapacity(cfg.QueueCapacity),
		central.WithSpillCapacity(cfg.SpillCapacity),
	)

	started := time.Now()
	if err := session.Run(ctx); err != nil {
		return err
	}

	elapsed := time.Since(started)
	return printSummary(out, cfg.OutputFormat, session.Adapter().ID(), seen, session.Stats(), elapsed)
}

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/blewatch/internal/central"
	"github.com/srg/blewatch/internal/central/bluez"
	"github.com/srg/blewatch/internal/platform"
)

// adaptersCmd represents the adapters command
var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List the Bluetooth adapters of the selected backend",
	Long: `List the Bluetooth adapters the selected backend enumerates.

The adapter marked with * is the one watch uses: always the first one listed.`,
	Args: cobra.NoArgs,
	RunE: runAdapters,
}

func runAdapters(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	logger := configureLogger(cmd, cfg)
	backend, err := platform.Resolve(cfg.Backend)
	if err != nil {
		return err
	}

	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	adapters, err := manager.Adapters(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		for _, a := range adapters {
			_ = a.Close()
		}
	}()
	if len(adapters) == 0 {
		return central.ErrNoAdapterFound
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\tID\tBACKEND\tADDRESS\tPOWERED\n")
	for i, a := range adapters {
		mark := ""
		if i == 0 {
			mark = "*"
		}
		address, powered := "-", "-"
		if info, ok := a.(*bluez.AdapterInfo); ok {
			if info.Address != "" {
				address = info.Address
			}
			powered = fmt.Sprintf("%t", info.Powered)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, a.ID(), backend, address, powered)
	}
	return w.Flush()
}

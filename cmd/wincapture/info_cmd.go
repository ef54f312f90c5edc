package main

import (
	"fmt"
	"io"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print host platform details and the selected capture backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cleanup, err := loadConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		hostInfo, err := host.Info()
		if err != nil {
			// Partial info is still useful for diagnosing backend selection.
			log.Warn("failed to read host info", "error", err)
		}

		backendName := "unavailable"
		var backendErr error
		if p, err := selectPlatform(cfg.Backend); err != nil {
			backendErr = err
		} else {
			backendName = p.Name()
		}

		printInfo(cmd.OutOrStdout(), hostInfo, cfg.Backend, backendName, backendErr)
		return nil
	},
}

func printInfo(w io.Writer, hostInfo *host.InfoStat, configured, selected string, backendErr error) {
	fmt.Fprintf(w, "wincapture v%s\n", version)
	if hostInfo != nil {
		fmt.Fprintf(w, "Host:      %s\n", hostInfo.Hostname)
		fmt.Fprintf(w, "OS:        %s %s (%s)\n", hostInfo.Platform, hostInfo.PlatformVersion, hostInfo.KernelArch)
		fmt.Fprintf(w, "Kernel:    %s\n", hostInfo.KernelVersion)
	}
	fmt.Fprintf(w, "Backend:   %s (configured %s)\n", selected, configured)
	if backendErr != nil {
		fmt.Fprintf(w, "Error:     %v\n", backendErr)
	}
}

// Powerroam reads live telemetry from UGREEN portable power stations.
//
// It connects to the station over Bluetooth LE (directly, or through a
// BLE-to-WebSocket or serial bridge), decodes the notification stream and
// shows it as a status report, a live dashboard or Prometheus metrics. It
// can also switch the built in flashlight and record notifications for
// later replay.
//
// Usage:
//
//	powerroam [command] [flags]
//
// See 'powerroam --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/powerroam/powerroam/internal/logging"
	"github.com/powerroam/powerroam/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "powerroam",
	Short: "UGREEN power station telemetry over Bluetooth LE",
	Long: `Read live telemetry from UGREEN portable power stations.

powerroam talks to the station over Bluetooth LE, either directly or through
a BLE-to-WebSocket bridge (--transport bridge) or a serial bridge
(--transport serial). Captured sessions can be replayed with --replay.

Defaults for most flags can be stored in the config file; run
'powerroam version' to see where it lives.`,
	Version:           version.Full(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	Example: `  # One-shot status report
  powerroam status

  # Live dashboard through a bridge found by mDNS
  powerroam watch --transport bridge

  # Prometheus exporter on port 9200
  powerroam exporter --port 9200

  # Turn the flashlight on
  powerroam flashlight high`,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	registerGlobalFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionJSON {
			return printJSON(cmd.OutOrStdout(), info)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "powerroam %s\n", info)
		if path, err := configPath(); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "config: %s\n", path)
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/config"
	"github.com/powerroam/powerroam/internal/discovery"
	"github.com/powerroam/powerroam/internal/logging"
	"github.com/powerroam/powerroam/internal/transport"
)

// globalOptions holds the persistent flags after config preferences have
// been merged in.
type globalOptions struct {
	DeviceName string
	Transport  string
	BridgeURL  string
	SerialPort string
	BaudRate   int
	ReplayFile string
	LogLevel   string
	LogFile    string
	Timeout    time.Duration

	// From config only
	NotifyUUID   string
	WriteUUID    string
	ExporterPort int
}

const defaultTimeout = transport.DefaultScanTimeout

// defaultLogLevel keeps checksum failures and dropped notifications visible
// when neither --log-level nor POWERROAM_LOG_LEVEL is set.
const defaultLogLevel = "warn"

var (
	opts     globalOptions
	registry *config.Registry

	// configPath and logOutput are swapped in tests; a nil logOutput means
	// stderr.
	configPath = config.GetConfigPath
	logOutput  io.Writer
)

func registerGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&opts.DeviceName, "device-name", "d", transport.DefaultDeviceName, "Substring of the station's advertised name")
	f.StringVar(&opts.Transport, "transport", string(transport.KindBLE), "Link to the station (ble, bridge, serial, replay)")
	f.StringVar(&opts.BridgeURL, "bridge", "", "WebSocket bridge URL (discovered over mDNS when empty)")
	f.StringVar(&opts.SerialPort, "serial-port", "", "Serial bridge device (e.g. /dev/ttyUSB0)")
	f.IntVar(&opts.BaudRate, "baud", transport.DefaultBaudRate, "Serial bridge baud rate")
	f.StringVar(&opts.ReplayFile, "replay", "", "Replay a capture file instead of connecting (implies --transport replay)")
	f.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); warn when empty")
	f.StringVar(&opts.LogFile, "log-file", "", "Also write JSON logs to this file, rotated by size")
	f.DurationVar(&opts.Timeout, "timeout", defaultTimeout, "Time limit for finding the station and collecting a report")
}

// setup runs before every command: logging, config and flag merging.
func setup(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeWithOptions(logging.Options{
		Level:        opts.LogLevel,
		DefaultLevel: defaultLogLevel,
		File:         opts.LogFile,
		Console:      logOutput,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	registry = loadRegistry()
	applyPreferences(cmd.Flags(), registry.Preferences, &opts)

	if opts.ReplayFile != "" {
		opts.Transport = string(transport.KindReplay)
	}
	if _, err := transport.ParseKind(opts.Transport); err != nil {
		return err
	}
	return nil
}

// loadRegistry never fails: a broken config file is reported and ignored.
func loadRegistry() *config.Registry {
	path, err := configPath()
	if err != nil {
		logging.Warn("Config location unavailable", zap.Error(err))
		return config.NewRegistry()
	}
	reg, err := config.LoadRegistryFrom(path)
	if err != nil {
		logging.Warn("Ignoring config file", zap.String("path", path), zap.Error(err))
		return config.NewRegistry()
	}
	return reg
}

// saveRegistry persists device sightings. Failures are logged only.
func saveRegistry() {
	path, err := configPath()
	if err != nil {
		return
	}
	if err := registry.SaveTo(path); err != nil {
		logging.Warn("Failed to save config", zap.String("path", path), zap.Error(err))
	}
}

// applyPreferences fills every flag the user did not set from prefs.
func applyPreferences(flags *pflag.FlagSet, prefs *config.Preferences, o *globalOptions) {
	if prefs == nil {
		return
	}
	unset := func(name string) bool {
		f := flags.Lookup(name)
		return f == nil || !f.Changed
	}

	if prefs.DeviceName != "" && unset("device-name") {
		o.DeviceName = prefs.DeviceName
	}
	if prefs.Transport != "" && unset("transport") {
		o.Transport = prefs.Transport
	}
	if prefs.BridgeURL != "" && unset("bridge") {
		o.BridgeURL = prefs.BridgeURL
	}
	if prefs.SerialPort != "" && unset("serial-port") {
		o.SerialPort = prefs.SerialPort
	}
	if prefs.BaudRate != 0 && unset("baud") {
		o.BaudRate = prefs.BaudRate
	}
	if prefs.ScanTimeout != 0 && unset("timeout") {
		o.Timeout = prefs.ScanTimeout
	}
	o.NotifyUUID = prefs.NotifyUUID
	o.WriteUUID = prefs.WriteUUID
	o.ExporterPort = prefs.ExporterPort
}

// linkOptions builds transport options for the merged flags.
func (o globalOptions) linkOptions(replayInterval time.Duration) transport.Options {
	kind, _ := transport.ParseKind(o.Transport)
	return transport.Options{
		Kind:           kind,
		DeviceName:     o.DeviceName,
		ScanTimeout:    o.Timeout,
		NotifyUUID:     o.NotifyUUID,
		WriteUUID:      o.WriteUUID,
		BridgeURL:      o.BridgeURL,
		SerialPort:     o.SerialPort,
		BaudRate:       o.BaudRate,
		ReplayFile:     o.ReplayFile,
		ReplayInterval: replayInterval,
	}
}

// openLink connects to the station. A bridge transport without a URL looks
// for a bridge attached to the device over mDNS. BLE connections are
// recorded in the config's device list.
func openLink(ctx context.Context, replayInterval time.Duration) (transport.Link, error) {
	lo := opts.linkOptions(replayInterval)

	if lo.Kind == transport.KindBridge && lo.BridgeURL == "" {
		bridge, err := findBridge(ctx, opts.DeviceName)
		if err != nil {
			return nil, err
		}
		lo.BridgeURL = bridge.URL()
	}

	link, err := transport.Open(ctx, lo)
	if err != nil {
		return nil, err
	}

	if ble, ok := link.(*transport.BLELink); ok {
		registry.RecordSeen(ble.Address(), ble.Name())
		saveRegistry()
	}
	return link, nil
}

func findBridge(ctx context.Context, device string) (*discovery.Bridge, error) {
	scanner := discovery.NewScanner()
	scanner.Timeout = min(opts.Timeout, 10*time.Second)

	bridge, err := scanner.WaitForBridge(ctx, device)
	if errors.Is(err, discovery.ErrBridgeNotFound) {
		// Fall back to any bridge when none names the device
		bridge, err = scanner.WaitForBridge(ctx, "")
	}
	if err != nil {
		return nil, fmt.Errorf("no bridge found, pass --bridge: %w", err)
	}
	logging.Info("Using discovered bridge", zap.String("bridge", bridge.String()), zap.String("url", bridge.URL()))
	return bridge, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

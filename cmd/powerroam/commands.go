package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/powerroam/powerroam/internal/dashboard"
	"github.com/powerroam/powerroam/internal/device"
	"github.com/powerroam/powerroam/internal/discovery"
	"github.com/powerroam/powerroam/internal/exporter"
	"github.com/powerroam/powerroam/internal/logging"
	"github.com/powerroam/powerroam/internal/protocol"
	"github.com/powerroam/powerroam/internal/transport"
	"github.com/powerroam/powerroam/internal/ui"
)

// replayPace spaces replayed notifications for streaming commands so a
// capture plays back at a watchable speed.
const replayPace = 250 * time.Millisecond

// Output formats for status
const (
	formatDetailed = "detailed"
	formatPlain    = "plain"
	formatJSON     = "json"
)

// Command flags
var (
	statusFormat    string
	scanDuration    time.Duration
	scanAll         bool
	scanJSON        bool
	bridgesDuration time.Duration
	bridgesJSON     bool
	exporterHost    string
	exporterPort    int
	recordDuration  time.Duration
	recordComment   string
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(bridgesCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exporterCmd)
	rootCmd.AddCommand(flashlightCmd)
	rootCmd.AddCommand(recordCmd)
}

// statusCmd collects one complete snapshot and prints it
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a complete status report",
	Long: `Connect to the station, wait until every kind of update has been
received at least once and print the resulting report.

The command fails if the report is not complete within --timeout.`,
	Example: `  # Boxed report
  powerroam status

  # Machine readable
  powerroam status --format json

  # From a capture
  powerroam status --replay session.cap --format plain`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", formatDetailed, "Output format (detailed, plain, json)")
}

func parseFormat(s string) (string, error) {
	switch f := strings.ToLower(s); f {
	case formatDetailed, formatPlain, formatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected detailed, plain or json)", s)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(statusFormat)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	detailed := format == formatDetailed

	if detailed {
		printHeader(out, "Station Status", "powerroam status", linkParams()...)
	}

	info, err := collectStatus(cmd.Context())
	if err != nil {
		if detailed {
			printFailure(out, "Status report failed", err, troubleshooting()...)
		}
		return err
	}

	switch format {
	case formatJSON:
		return printJSON(out, info)
	case formatPlain:
		fmt.Fprint(out, info.String())
	default:
		fmt.Fprintln(out, ui.RenderDeviceInfo(info, ui.GetTerminalWidth()))
	}
	return nil
}

func collectStatus(ctx context.Context) (protocol.DeviceInfo, error) {
	link, err := openLink(ctx, 0)
	if err != nil {
		return protocol.DeviceInfo{}, fmt.Errorf("failed to connect: %w", err)
	}
	defer link.Close()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	return device.NewSession(link).Status(ctx)
}

// connectCmd checks that the station can be reached
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the station and report what was found",
	Long: `Find the station, connect and subscribe to its notifications, then
disconnect. Use this to check the link before running the exporter or the
dashboard. Stations reached over BLE are remembered in the config file.`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	printHeader(out, "Connect", "powerroam connect", linkParams()...)

	link, err := openLink(cmd.Context(), 0)
	if err != nil {
		printFailure(out, "Connection failed", err, troubleshooting()...)
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer link.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if _, err := link.Notifications(ctx); err != nil {
		printFailure(out, "Subscription failed", err, troubleshooting()...)
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	details := []ui.Param{{Key: "Transport", Value: opts.Transport}}
	if ble, ok := link.(*transport.BLELink); ok {
		details = append(details,
			ui.Param{Key: "Name", Value: ble.Name()},
			ui.Param{Key: "Address", Value: ble.Address()},
			ui.Param{Key: "Known as", Value: registry.DisplayName(ble.Address())},
		)
	}
	printSuccess(out, "Connected", details...)
	return nil
}

// scanCmd lists stations advertising over BLE
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for stations over Bluetooth LE",
	Long: `Listen for BLE advertisements and list every station whose name
contains --device-name. Found stations are added to the config file, where
they can be given a nickname.`,
	Example: `  # Scan for 10 seconds (default)
  powerroam scan

  # List every named BLE device
  powerroam scan --all --duration 20s`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanDuration, "duration", 10*time.Second, "How long to listen")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "List every named device, not only stations")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print results as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	filter := opts.DeviceName
	if scanAll {
		filter = ""
	}

	if !scanJSON {
		fmt.Fprintf(out, "Scanning for %q (%s)...\n\n", filter, scanDuration)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), scanDuration)
	defer cancel()
	found, err := transport.ScanDevices(ctx, filter)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	slices.SortFunc(found, func(a, b transport.Peripheral) int { return int(b.RSSI) - int(a.RSSI) })
	for _, p := range found {
		registry.RecordSeen(p.Address, p.Name)
	}
	if len(found) > 0 {
		saveRegistry()
	}

	if scanJSON {
		return printJSON(out, found)
	}

	if len(found) == 0 {
		fmt.Fprintln(out, "No stations found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		for _, tip := range ui.ConnectionTroubleshooting {
			fmt.Fprintf(out, "  - %s\n", tip)
		}
		fmt.Fprintln(out, "  - Try a longer --duration or --all to see every device")
		return nil
	}

	fmt.Fprintf(out, "Found %d device(s):\n\n", len(found))
	for i, p := range found {
		fmt.Fprintf(out, "%d. %s\n", i+1, p.Name)
		fmt.Fprintf(out, "   Address:  %s\n", p.Address)
		fmt.Fprintf(out, "   RSSI:     %d dBm\n", p.RSSI)
		if d := registry.GetDevice(p.Address); d != nil && d.Nickname != "" {
			fmt.Fprintf(out, "   Nickname: %s\n", d.Nickname)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "Use 'powerroam status -d <name>' to read a station")
	return nil
}

// bridgesCmd lists BLE bridges announced over mDNS
var bridgesCmd = &cobra.Command{
	Use:   "bridges",
	Short: "Discover BLE-to-WebSocket bridges on the network",
	Long: `Browse mDNS for powerroam bridges (` + discovery.ServiceType + `) and list
their WebSocket URLs. Pass a URL to --bridge, or use --transport bridge
without --bridge to pick one automatically.`,
	Args: cobra.NoArgs,
	RunE: runBridges,
}

func init() {
	bridgesCmd.Flags().DurationVar(&bridgesDuration, "duration", discovery.DefaultScanTimeout, "How long to listen")
	bridgesCmd.Flags().BoolVar(&bridgesJSON, "json", false, "Print results as JSON")
}

type bridgeJSON struct {
	Instance string `json:"instance"`
	URL      string `json:"url"`
	Device   string `json:"device,omitempty"`
}

func runBridges(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if !bridgesJSON {
		fmt.Fprintf(out, "Browsing for bridges (%s)...\n\n", bridgesDuration)
	}

	bridges, err := discovery.DiscoverBridges(cmd.Context(), bridgesDuration)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if bridgesJSON {
		list := make([]bridgeJSON, 0, len(bridges))
		for _, b := range bridges {
			list = append(list, bridgeJSON{Instance: b.Instance, URL: b.URL(), Device: b.Device})
		}
		return printJSON(out, list)
	}

	if len(bridges) == 0 {
		fmt.Fprintln(out, "No bridges found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d bridge(s):\n\n", len(bridges))
	for i, b := range bridges {
		fmt.Fprintf(out, "%d. %s\n", i+1, b.Instance)
		fmt.Fprintf(out, "   URL:     %s\n", b.URL())
		if b.Device != "" {
			fmt.Fprintf(out, "   Station: %s\n", b.Device)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// watchCmd runs the live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live dashboard",
	Long: `Show every update as it arrives. Fields the station has not reported
yet show a spinner. Press f to cycle the flashlight, q to quit.

When stdout is not a terminal, updates are printed one per line instead.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	link, err := openLink(ctx, replayPace)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer link.Close()

	session := device.NewSession(link)
	updates, err := session.Updates(ctx)
	if err != nil {
		return err
	}

	if !ui.IsTerminal() {
		return streamUpdates(ctx, cmd.OutOrStdout(), updates)
	}

	dopts := dashboard.Options{
		Source:    linkName(link),
		Transport: opts.Transport,
	}
	if opts.Transport != string(transport.KindReplay) {
		dopts.SetFlashlight = session.SetFlashlight
	}
	return dashboard.Run(ctx, updates, dopts)
}

// streamUpdates prints updates one per line until the feed closes.
func streamUpdates(ctx context.Context, w io.Writer, updates <-chan protocol.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "%s %s\n", time.Now().Format("15:04:05.000"), u)
		}
	}
}

// exporterCmd serves Prometheus metrics and the live feed
var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Serve Prometheus metrics for the station",
	Long: `Keep a connection to the station and serve its telemetry over HTTP:

  /metrics   Prometheus metrics
  /snapshot  latest known state as JSON (503 until every field was seen)
  /ws        live update feed over WebSocket
  /healthz   liveness probe

The command exits when the station disconnects.`,
	Example: `  # Default port (9091)
  powerroam exporter

  # Through a bridge, on another port
  powerroam exporter --transport bridge --bridge ws://10.0.0.5:80/ws --port 9200`,
	Args: cobra.NoArgs,
	RunE: runExporter,
}

func init() {
	exporterCmd.Flags().StringVar(&exporterHost, "host", "", "Listen address (empty = all interfaces)")
	exporterCmd.Flags().IntVar(&exporterPort, "port", exporter.DefaultPort, "Listen port")
}

func runExporter(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	port := exporterPort
	if !cmd.Flags().Changed("port") && opts.ExporterPort != 0 {
		port = opts.ExporterPort
	}
	cfg := exporter.Config{Host: exporterHost, Port: port}
	exp := exporter.New(cfg)

	printHeader(out, "Metrics Exporter", "powerroam exporter",
		append(linkParams(), ui.Param{Key: "Listen", Value: cfg.Addr()})...)

	link, err := openLink(ctx, replayPace)
	if err != nil {
		printFailure(out, "Connection failed", err, troubleshooting()...)
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer link.Close()

	updates, err := device.NewSession(link, device.WithObserver(exp.Sink())).Updates(ctx)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- exp.Start() }()

	consumeErr := make(chan error, 1)
	go func() { consumeErr <- exp.Consume(ctx, updates) }()

	var runErr error
	select {
	case runErr = <-serveErr:
	case err := <-consumeErr:
		switch {
		case errors.Is(err, context.Canceled):
		case err != nil:
			runErr = err
		case opts.Transport == string(transport.KindReplay):
			// Keep serving the replayed state until interrupted
			logging.Info("Replay finished, still serving")
			select {
			case <-ctx.Done():
			case runErr = <-serveErr:
			}
		default:
			runErr = device.ErrStreamEnded
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exp.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Exporter shutdown failed", zap.Error(err))
	}
	return runErr
}

// flashlightCmd reads or sets the flashlight mode
var flashlightCmd = &cobra.Command{
	Use:       "flashlight [off|low|high|strobe|sos]",
	Short:     "Show or set the flashlight mode",
	Long:      `Without an argument, print the current flashlight mode. With a mode, send it to the station.`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"off", "low", "high", "strobe", "sos"},
	RunE:      runFlashlight,
}

func runFlashlight(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var mode protocol.FlashlightMode
	if len(args) == 1 {
		var err error
		if mode, err = protocol.ParseFlashlightMode(args[0]); err != nil {
			return err
		}
	}

	link, err := openLink(cmd.Context(), 0)
	if err != nil {
		printFailure(out, "Connection failed", err, troubleshooting()...)
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer link.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()
	session := device.NewSession(link)

	if len(args) == 0 {
		current, err := session.Flashlight(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Flashlight is %s\n", current)
		return nil
	}

	if err := session.SetFlashlight(ctx, mode); err != nil {
		printFailure(out, "Flashlight request failed", err, troubleshooting()...)
		return err
	}
	printSuccess(out, "Flashlight set", ui.Param{Key: "Mode", Value: mode.String()})
	return nil
}

// recordCmd captures raw notifications for later replay
var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record raw notifications to a capture file",
	Long: `Write every notification to a capture file (one hex line per
notification, with a timestamp) while printing the decoded updates. Replay
the file with --replay.

Recording stops on ctrl+c, after --duration, or when the station disconnects.`,
	Example: `  # Record one minute
  powerroam record session.cap --duration 1m

  # Play it back in the dashboard
  powerroam watch --replay session.cap`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
	recordCmd.Flags().StringVar(&recordComment, "comment", "", "Comment stored in the capture header")
}

func runRecord(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	ctx := cmd.Context()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, recordDuration)
		defer cancel()
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}
	defer f.Close()

	comment := recordComment
	if comment == "" {
		comment = fmt.Sprintf("device=%q transport=%s recorded=%s",
			opts.DeviceName, opts.Transport, time.Now().UTC().Format(time.RFC3339))
	}
	capture, err := transport.NewCaptureWriter(f, comment)
	if err != nil {
		return err
	}

	link, err := openLink(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	recorder := transport.NewRecorder(link, capture)
	defer recorder.Close()

	updates, err := device.NewSession(recorder).Updates(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Recording to %s, press ctrl+c to stop\n\n", path)
	if err := streamUpdates(ctx, out, updates); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nRecorded %d notification(s) to %s\n", recorder.Recorded(), path)
	return nil
}

// linkParams describes the selected link for command headers.
func linkParams() []ui.Param {
	params := []ui.Param{{Key: "Transport", Value: opts.Transport}}
	switch transport.Kind(opts.Transport) {
	case transport.KindBridge:
		url := opts.BridgeURL
		if url == "" {
			url = "mDNS discovery"
		}
		params = append(params, ui.Param{Key: "Bridge", Value: url})
	case transport.KindSerial:
		params = append(params, ui.Param{Key: "Serial", Value: fmt.Sprintf("%s @ %d", opts.SerialPort, opts.BaudRate)})
	case transport.KindReplay:
		params = append(params, ui.Param{Key: "Capture", Value: opts.ReplayFile})
	}
	params = append(params, ui.Param{Key: "Device", Value: opts.DeviceName})
	return params
}

// linkName names the connected station for the dashboard header.
func linkName(link transport.Link) string {
	if ble, ok := link.(*transport.BLELink); ok {
		return registry.DisplayName(ble.Address())
	}
	switch transport.Kind(opts.Transport) {
	case transport.KindReplay:
		return opts.ReplayFile
	case transport.KindBridge:
		return opts.DeviceName + " via bridge"
	case transport.KindSerial:
		return opts.DeviceName + " via " + opts.SerialPort
	}
	return opts.DeviceName
}

func troubleshooting() []string {
	switch transport.Kind(opts.Transport) {
	case transport.KindBridge:
		return []string{
			"Check the bridge is reachable: powerroam bridges",
			"Pass the URL explicitly with --bridge ws://host:port/ws",
			"Make sure the bridge itself is connected to the station",
		}
	case transport.KindSerial:
		return []string{
			"Check the port name and that you may open it (dialout group on Linux)",
			"Match the dongle's baud rate with --baud",
		}
	case transport.KindReplay:
		return []string{"Check the capture file was written by 'powerroam record'"}
	}
	return ui.ConnectionTroubleshooting
}

func printHeader(w io.Writer, title, command string, params ...ui.Param) {
	fmt.Fprintln(w, ui.NewHeader(title, command, params...).Render())
	fmt.Fprintln(w)
}

func printSuccess(w io.Writer, title string, details ...ui.Param) {
	fmt.Fprintln(w, ui.NewSuccessResult(title, details...).Render())
}

func printFailure(w io.Writer, title string, err error, tips ...string) {
	fmt.Fprintln(w, ui.NewFailureResult(title, err, tips...).Render())
}

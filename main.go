package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"beacon-bridge.klederson.com/internal/app"
	"beacon-bridge.klederson.com/internal/bluetooth"
	"beacon-bridge.klederson.com/internal/bridge"
	"beacon-bridge.klederson.com/internal/config"
	"beacon-bridge.klederson.com/internal/engine"
	"beacon-bridge.klederson.com/internal/gateway"
	"beacon-bridge.klederson.com/internal/logging"
	"beacon-bridge.klederson.com/internal/mqtt"
)

var flagConfig string

// viper key -> flag name
var flagKeys = map[string]string{
	"demo":      "demo",
	"adapter":   "adapter",
	"log_level": "log-level",
	"listen":    "listen",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "beacon-bridge",
		Short: "Beacon Bridge - BLE beacon ranging and region monitoring",
		Long: `Beacon Bridge scans for BLE beacons (iBeacon, AltBeacon, Eddystone),
ranges them per region and reports region entry and exit.

Without a subcommand it opens a terminal watcher. "serve" exposes the bridge
commands over WebSocket and publishes events to MQTT.

Requires sudo or CAP_NET_ADMIN capability for real Bluetooth scanning.
Use --demo flag for demonstration mode without Bluetooth hardware.`,
		SilenceUsage: true,
		RunE:         runWatch,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Configuration file (yaml, json or toml)")
	pf.Bool("demo", false, "Run with simulated beacons (no Bluetooth required)")
	pf.String("adapter", "hci0", "Bluetooth adapter to use")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve bridge commands over WebSocket and publish events",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", "127.0.0.1:8787", "WebSocket gateway listen address")
	rootCmd.AddCommand(serveCmd)

	return rootCmd
}

func loadOptions(cmd *cobra.Command) (config.Options, error) {
	v, err := config.NewViper(flagConfig)
	if err != nil {
		return config.Options{}, err
	}
	for key, name := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return config.Options{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return config.Load(v)
}

// newManager builds the engine over real hardware or the simulator.
// It returns the manager and a label for the advertisement source.
func newManager(opts config.Options, logger *slog.Logger) (*engine.Manager, string) {
	var (
		source      engine.Source
		transmitter engine.Transmitter
		label       string
	)
	if opts.Demo {
		source = bluetooth.NewMockScanner(uuid.MustParse(config.DemoUUID))
		transmitter = bluetooth.MockTransmitter{Status: bluetooth.TransmissionSupported}
		label = "demo"
	} else {
		source = bluetooth.NewBLEScanner(opts.Adapter, logger)
		transmitter = bluetooth.NewBLETransmitter(opts.Adapter)
		label = opts.Adapter
	}

	m := engine.New(source, transmitter, logger)
	m.SetForegroundScanPeriod(opts.ForegroundScanPeriod)
	m.SetForegroundBetweenScanPeriod(opts.ForegroundBetweenScanPeriod)
	m.SetBackgroundScanPeriod(opts.BackgroundScanPeriod)
	m.SetBackgroundBetweenScanPeriod(opts.BackgroundBetweenScanPeriod)
	m.SetBackgroundMode(opts.Background)
	return m, label
}

func runWatch(cmd *cobra.Command, _ []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	// The terminal belongs to the UI: log to a file or nowhere.
	logger, closeLog, err := logging.New(opts, config.AppVersion, config.AppName, nil)
	if err != nil {
		return err
	}
	defer closeLog()

	manager, label := newManager(opts, logger)
	emitter := &app.Emitter{}
	b, err := bridge.New(manager, emitter, logger)
	if err != nil {
		return err
	}

	model := app.New(b, app.Options{
		Source:     label,
		RegionID:   opts.RegionID,
		RegionUUID: opts.RegionUUID,
		AutoBind:   opts.AutoBind,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	emitter.Attach(p)

	_, runErr := p.Run()
	emitter.Detach()
	if err := b.UnbindManager(); err != nil {
		logger.Warn("unbind on exit failed", "error", err)
	}
	return runErr
}

func runServe(cmd *cobra.Command, _ []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(opts, config.AppVersion, config.AppName, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, label := newManager(opts, logger)
	srv := gateway.NewServer(opts.Listen, logger)
	emitters := bridge.Emitters{srv}

	if opts.MQTT.Enabled() {
		pub := mqtt.NewPublisher(opts.MQTT, logger)
		defer pub.Close()
		emitters = append(emitters, pub)
		go func() {
			if err := pub.Connect(ctx); err != nil && ctx.Err() == nil {
				logger.Error("mqtt connect failed", "error", err)
			}
		}()
	}

	b, err := bridge.New(manager, emitters, logger)
	if err != nil {
		return err
	}
	gateway.RegisterBridgeHandlers(srv, b)

	if err := watchConfiguredRegion(b, opts); err != nil {
		return err
	}
	if opts.AutoBind {
		if err := b.BindManager(); err != nil {
			logger.Error("bind failed", "source", label, "error", err)
		}
	}

	logger.Info("beacon bridge serving", "source", label, "listen", opts.Listen, "mqtt", opts.MQTT.Enabled())
	serveErr := srv.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.BeaconTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.UnbindManager() }()
	select {
	case err := <-done:
		if err != nil {
			logger.Warn("unbind on exit failed", "error", err)
		}
	case <-shutdownCtx.Done():
		logger.Warn("unbind on exit timed out")
	}
	return serveErr
}

// watchConfiguredRegion ranges and monitors the configured region so that
// MQTT subscribers receive events without a WebSocket client.
func watchConfiguredRegion(b *bridge.Bridge, opts config.Options) error {
	if err := b.StartRanging(opts.RegionID, opts.RegionUUID); err != nil {
		return fmt.Errorf("range %s: %w", opts.RegionID, err)
	}
	if err := b.StartMonitoring(opts.RegionID, opts.RegionUUID, bridge.Unspecified, bridge.Unspecified); err != nil {
		return fmt.Errorf("monitor %s: %w", opts.RegionID, err)
	}
	return nil
}

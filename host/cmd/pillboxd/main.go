// Command pillboxd runs the pill box application on a Linux board: buttons,
// LEDs and load cells on periph.io GPIO, records exported over BLE and an
// RFCOMM SPP link.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pillbox/app"
	"pillbox/core"
	"pillbox/host/config"
	"pillbox/host/gpio"
	"pillbox/host/serial"
	"pillbox/radio/ble"
	"pillbox/radio/spp"
)

var (
	configPath = flag.String("config", "", "Config file (default: pillbox.yaml in . or /etc/pillbox)")
	noBLE      = flag.Bool("no-ble", false, "Do not enable the BLE export service")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pillboxd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger, level, err := config.NewLogger(app.DefaultLogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loader := config.New(logger, *configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if err := config.SetLevel(level, cfg.LogLevel); err != nil {
		logger.Warnw("Ignoring log level", "error", err)
	}

	config.RouteDebug(logger)
	core.InitAsyncDebug()

	go loader.Watch(func(reloaded *app.Config) {
		// Pins and timing are fixed at Initialize; only the log level applies live
		if err := config.SetLevel(level, reloaded.LogLevel); err != nil {
			logger.Warnw("Ignoring log level", "error", err)
		}
	})
	defer loader.Stop()

	pins, err := gpio.Open(logger)
	if err != nil {
		return err
	}
	defer pins.Close()

	mgr, err := app.NewManagerWithConfig(cfg)
	if err != nil {
		return err
	}

	link := spp.New(serial.DefaultConfig(cfg.SPPDevice), logger)
	defer link.Close()

	var advertiser app.Advertiser
	if !*noBLE {
		server := ble.NewDefault(cfg.DeviceName, mgr.ReadRecords)
		if err := server.Enable(); err != nil {
			logger.Warnw("BLE unavailable, exporting over SPP only", "error", err)
		} else {
			advertiser = server
		}
	}
	mgr.SetRadios(advertiser, link)

	core.SetGPIODriver(pins)
	if err := mgr.Initialize(core.MustInterruptGPIO()); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	opts := mgr.Buttons().Options()
	logger.Infow("Pill box running",
		"device", cfg.DeviceName,
		"buttons", len(cfg.Buttons),
		"debounceTicks", opts.DebounceInterval,
		"longPressTicks", opts.LongPressInterval,
		"config", loader.ConfigFileUsed())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.Run(ctx); err != nil {
		return err
	}

	if core.IsDebugEnabled() {
		core.DumpTimingRing()
	}

	stats := mgr.Stats()
	logger.Infow("Stopped",
		"presses", stats.Presses,
		"longPresses", stats.LongPress,
		"exports", stats.Exports,
		"exportErrors", stats.ExportErrs,
		"droppedEvents", mgr.Buttons().Dropped())
	return nil
}

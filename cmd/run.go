// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/bridge"
	"github.com/Thermoquad/dvsbridge/pkg/capture"
	"github.com/Thermoquad/dvsbridge/pkg/config"
	"github.com/Thermoquad/dvsbridge/pkg/console"
	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/Thermoquad/dvsbridge/pkg/host"
	"github.com/Thermoquad/dvsbridge/pkg/spinnlink"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	runResolution    string
	runCaptureFile   string
	runStatsInterval int
	runUseTUI        bool
	runNoConsole     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge",
	Long: `Decode the eDVS stream, downsample it and transmit it on the link.

The bridge reads sensor frames from --sensor (optional: without a sensor it
only relays events injected through the console or the TUI). Forwarded
records and console replies go to the host connection (--port or --url), or
to stdout when neither is given.

The link bus is chosen in the configuration file:
  loopback - in-process peer that acknowledges every symbol and feeds the
             packets back into the receiver (default)
  none     - transmit only, nothing acknowledges

Use --tui for a live dashboard with a command line, or --stats-interval for
periodic statistics in text mode.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runResolution, "resolution", "r", "", "Resolution: full, half, quarter, eighth (overrides config)")
	runCmd.Flags().StringVar(&runCaptureFile, "capture", "", "Record events and link values to this CBOR file (overrides config)")
	runCmd.Flags().IntVar(&runStatsInterval, "stats-interval", 10, "Statistics interval in seconds for text mode (0 disables)")
	runCmd.Flags().BoolVar(&runUseTUI, "tui", false, "Show the terminal dashboard")
	runCmd.Flags().BoolVar(&runNoConsole, "no-console", false, "Do not accept console commands on the host connection")
}

// bridgeOptions converts settings into bridge options
func bridgeOptions(cfg *config.Config) (bridge.Options, error) {
	resolution, err := dvs.ParseResolution(cfg.Aggregator.Resolution)
	if err != nil {
		return bridge.Options{}, err
	}
	var address spinnlink.Address
	copy(address[:], cfg.Link.Address)

	return bridge.Options{
		Resolution:         resolution,
		AggregatorCapacity: cfg.Aggregator.Capacity,
		Address:            address,
		QueuePackets:       cfg.Link.QueuePackets,
		DisableWait:        time.Duration(cfg.Link.DisableWaitMS) * time.Millisecond,
	}, nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg := settings
	if runResolution != "" {
		cfg.Aggregator.Resolution = runResolution
	}
	if runCaptureFile != "" {
		cfg.Capture.File = runCaptureFile
	}

	opts, err := bridgeOptions(cfg)
	if err != nil {
		return err
	}

	// Host channel
	var hostConn Connection
	var hostOut io.Writer = os.Stdout
	hostInfo := "stdout"
	if HasHostConnection() {
		hostConn, hostInfo, err = OpenConnection()
		if err != nil {
			return err
		}
		defer hostConn.Close()
		hostOut = hostConn
	} else if runUseTUI {
		hostOut = io.Discard
		hostInfo = "none"
	}
	channel := host.NewChannel(hostOut)

	// Capture
	if cfg.Capture.File != "" {
		f, err := os.Create(cfg.Capture.File)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %v", err)
		}
		defer f.Close()
		opts.Capture = capture.NewWriter(f)
	}

	// Link bus
	bus := spinnlink.NewLoopback()
	var rxLines spinnlink.RxLines
	if cfg.Link.Bus == config.BusLoopback {
		rxLines = bus
	}

	var program *tea.Program
	opts.ValueSink = func(v uint16) {
		if program != nil {
			program.Send(linkValueMsg{value: v})
			return
		}
		log.Printf("link value 0x%04X", v)
	}

	b, err := bridge.New(opts, channel, bus, rxLines)
	if err != nil {
		return err
	}
	if rxLines != nil {
		bus.Connect(b.Receiver(), b.Transmitter())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sensor reader
	sensorInfo := "none"
	if cfg.Sensor.Port != "" {
		sensor, info, err := OpenSensorConnection()
		if err != nil {
			return err
		}
		defer sensor.Close()
		sensorInfo = info
		go feedSensor(ctx, sensor, b)
	}

	// Console
	if hostConn != nil && !runNoConsole {
		c := console.New(b, channel)
		go func() {
			if err := c.Run(hostConn); err != nil && ctx.Err() == nil {
				log.Printf("console stopped: %v", err)
			}
		}()
	}

	if runUseTUI {
		// Keep log lines off the alternate screen
		log.SetOutput(logFileWriter)

		m := initialMonitorModel(b, sensorInfo, hostInfo)
		program = tea.NewProgram(m, tea.WithAltScreen())

		errChan := make(chan error, 1)
		go func() { errChan <- b.Run(ctx) }()

		if _, err := program.Run(); err != nil {
			stop()
			return fmt.Errorf("TUI error: %v", err)
		}
		stop()
		<-errChan
		return nil
	}

	fmt.Fprintf(os.Stderr, "dvsbridge - Bridge\n")
	fmt.Fprintf(os.Stderr, "%s\n", sensorInfo)
	fmt.Fprintf(os.Stderr, "Host: %s\n", hostInfo)
	fmt.Fprintf(os.Stderr, "Resolution: %s | Bus: %s\n", opts.Resolution, cfg.Link.Bus)
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to exit\n\n")

	if runStatsInterval > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(runStatsInterval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					fmt.Fprint(os.Stderr, b.Stats().String())
				}
			}
		}()
	}

	err = b.Run(ctx)
	fmt.Fprint(os.Stderr, b.Stats().String())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// feedSensor copies sensor bytes into the bridge until the port fails
func feedSensor(ctx context.Context, sensor Connection, b *bridge.Bridge) {
	buf := make([]byte, 256)
	for {
		n, err := sensor.Read(buf)
		for i := 0; i < n; i++ {
			b.FeedByte(buf[i])
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("sensor read error: %v", err)
			}
			return
		}
	}
}

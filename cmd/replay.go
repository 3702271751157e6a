// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/capture"
	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/Thermoquad/dvsbridge/pkg/spinnlink"
	"github.com/spf13/cobra"
)

var (
	replayResolution string
	replayShowAll    bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Run a capture file through the aggregator and encoder",
	Long: `Read a capture written by "run --capture" and replay its events offline.

Each event is fed to the aggregator at the chosen resolution. Emitted events
are encoded with the configured address and printed with their packet.
Captured link values are printed as they appear. Use --all to also print
the events that did not cause an emission.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayResolution, "resolution", "r", "", "Resolution (defaults to config)")
	replayCmd.Flags().BoolVar(&replayShowAll, "all", false, "Print every captured event")
}

func runReplay(cmd *cobra.Command, args []string) error {
	name := replayResolution
	if name == "" {
		name = settings.Aggregator.Resolution
	}
	resolution, err := dvs.ParseResolution(name)
	if err != nil {
		return err
	}
	var address spinnlink.Address
	copy(address[:], settings.Link.Address)

	aggregator, err := dvs.NewAggregator(settings.Aggregator.Capacity, resolution)
	if err != nil {
		return err
	}
	encoder, err := spinnlink.NewEncoder(resolution, address)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %v", err)
	}
	defer f.Close()

	fmt.Printf("dvsbridge - Replay\n")
	fmt.Printf("File: %s\n", args[0])
	fmt.Printf("Resolution: %s\n\n", resolution)

	reader := capture.NewReader(f)
	var events, emitted, values int
	var first time.Time

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", events+values+1, err)
		}
		if first.IsZero() {
			first = rec.Time
		}
		offset := rec.Time.Sub(first).Round(time.Microsecond)

		switch rec.Kind {
		case capture.KindEvent:
			events++
			if replayShowAll {
				fmt.Printf("%12s  EVENT x=%3d y=%3d %s\n", offset, rec.Event.X, rec.Event.Y, dvs.FormatPolarity(rec.Event.Polarity))
			}
			out, ok := aggregator.Update(rec.Event)
			if !ok {
				continue
			}
			emitted++
			fmt.Printf("%12s  EMIT  x=%3d y=%3d %-3s  %s\n", offset, out.X, out.Y, dvs.FormatPolarity(out.Polarity), encoder.Encode(out))

		case capture.KindValue:
			values++
			fmt.Printf("%12s  VALUE 0x%04X\n", offset, rec.Value)
		}
	}

	fmt.Printf("\n--- Replay summary ---\n")
	fmt.Printf("Events: %d, emitted: %d, dropped: %d, link values: %d\n",
		events, emitted, aggregator.Dropped(), values)
	return nil
}

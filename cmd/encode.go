// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/Thermoquad/dvsbridge/pkg/spinnlink"
	"github.com/spf13/cobra"
)

var (
	encodeX          uint8
	encodeY          uint8
	encodePolarity   uint8
	encodeResolution string
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Show the link packet for one event",
	Long: `Encode a single event the way the bridge would and print the packet.

The output lists the payload, the parity bit, the eleven symbols and the wire
levels after each symbol, starting from all wires low. The address comes
from the configuration file.

Example:
  dvsbridge encode --x 5 --y 5 --pol 1 --resolution full`,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().Uint8Var(&encodeX, "x", 0, "Event x coordinate (0-127)")
	encodeCmd.Flags().Uint8Var(&encodeY, "y", 0, "Event y coordinate (0-127)")
	encodeCmd.Flags().Uint8Var(&encodePolarity, "pol", 0, "Event polarity (0 or 1)")
	encodeCmd.Flags().StringVarP(&encodeResolution, "resolution", "r", "full", "Resolution: full, half, quarter, eighth")
}

func runEncode(cmd *cobra.Command, args []string) error {
	if encodeX > dvs.CoordinateMask || encodeY > dvs.CoordinateMask {
		return fmt.Errorf("coordinates must be between 0 and %d", dvs.CoordinateMask)
	}
	if encodePolarity > 1 {
		return fmt.Errorf("polarity must be 0 or 1")
	}
	resolution, err := dvs.ParseResolution(encodeResolution)
	if err != nil {
		return err
	}
	var address spinnlink.Address
	copy(address[:], settings.Link.Address)

	encoder, err := spinnlink.NewEncoder(resolution, address)
	if err != nil {
		return err
	}

	event := dvs.Event{X: encodeX, Y: encodeY, Polarity: encodePolarity}
	payload := spinnlink.EventPayload(event, resolution)
	packet := encoder.Encode(event)

	fmt.Printf("Event: x=%d y=%d %s\n", event.X, event.Y, dvs.FormatPolarity(event.Polarity))
	fmt.Printf("Resolution: %s\n", resolution)
	fmt.Printf("Address: %d.%d.%d.%d\n", address[0], address[1], address[2], address[3])
	fmt.Printf("Payload: 0x%04X\n", payload)
	fmt.Printf("Parity: %d\n", spinnlink.Parity(payload, address))
	fmt.Printf("Packet: %s\n\n", packet)

	fmt.Printf("  #  symbol  wires\n")
	var wires uint8
	for i, sym := range packet {
		wires = (wires ^ sym) & spinnlink.LineMask
		fmt.Printf("%3d  0x%02X    %07b\n", i, sym, wires)
	}
	return nil
}

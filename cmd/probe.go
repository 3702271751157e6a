// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/spf13/cobra"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the sensor by waiting for a valid event",
	Long: `Wait for a valid eDVS event on --sensor until timeout.

Bytes that do not form a frame are ignored. The first complete event ends
the probe.

Exit codes:
  0 - Event received before timeout
  1 - Timeout reached without receiving an event
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for an event")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenSensorConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("dvsbridge - Sensor Probe\n")
	fmt.Printf("%s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for a valid event...\n\n")

	eventChan := make(chan dvs.Event, 1)
	errChan := make(chan error, 1)

	go func() {
		decoder := dvs.NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			for i := 0; i < n; i++ {
				if event, ok := decoder.DecodeByte(buf[i]); ok {
					if r := decoder.Resyncs(); r > 0 {
						fmt.Printf("(resynchronised %d times before the first frame)\n", r)
					}
					eventChan <- event
					return
				}
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	select {
	case event := <-eventChan:
		fmt.Printf("SUCCESS: Received valid event\n")
		fmt.Printf("  X: %d\n", event.X)
		fmt.Printf("  Y: %d\n", event.Y)
		fmt.Printf("  Polarity: %s\n", dvs.FormatPolarity(event.Polarity))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid event received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}

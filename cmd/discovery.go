// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/console"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

var (
	discoveryTimeout int
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find serial ports with a bridge console",
	Long: `Open every serial port on the system, send "id  " and list the ports
that answer with the board identifier.

The host baud rate (--baud) is used for every port.

Examples:
  dvsbridge discovery
  dvsbridge discovery --baud 115200 --timeout 2

Exit codes:
  0 - At least one bridge found
  1 - No bridge answered
  2 - Ports could not be listed`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 1, "Timeout in seconds per port")
}

// discoveredPort is a port that answered the identify command
type discoveredPort struct {
	name string
	id   string
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list ports: %v\n", err)
		os.Exit(2)
	}
	sort.Strings(ports)

	fmt.Printf("dvsbridge - Bridge Discovery\n")
	fmt.Printf("Ports: %d\n", len(ports))
	fmt.Printf("Timeout: %d seconds per port\n\n", discoveryTimeout)

	found := make([]discoveredPort, 0)
	for _, name := range ports {
		fmt.Printf("%s: ", name)
		id, err := probePort(name, settings.Host.Baud, time.Duration(discoveryTimeout)*time.Second)
		if err != nil {
			fmt.Printf("%v\n", err)
			continue
		}
		if id != console.BoardID {
			fmt.Printf("answered %q\n", id)
			continue
		}
		fmt.Printf("bridge\n")
		found = append(found, discoveredPort{name: name, id: id})
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Bridges found: %d\n", len(found))
	for _, p := range found {
		fmt.Printf("  %s (%s)\n", p.name, p.id)
	}

	if len(found) == 0 {
		fmt.Printf("No bridge answered. Check the cable and the baud rate.\n")
		os.Exit(1)
	}
	return nil
}

// probePort sends the identify command on one port
func probePort(name string, baud int, timeout time.Duration) (string, error) {
	conn, err := OpenSerialConnection(name, baud)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	// Bounded reads let the client reader see the close
	if err := conn.SetReadTimeout(timeout); err != nil {
		return "", err
	}

	client := console.NewClient(conn)
	client.Timeout = timeout
	return client.Identify()
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Host channel / console connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Sensor flags
	sensorPort string
	sensorBaud int

	// Ambient flags
	configFile string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "dvsbridge",
	Short: "eDVS to SpiNNaker link bridge",
	Long: `dvsbridge - Relay event camera output onto a SpiNNaker 2-of-7 link.

Bridge commands (run, raw_log, probe) read the eDVS UART given by --sensor.
The run command serves its command console on the host connection.

Host commands (ping, discovery, control) connect to a running bridge's
console and drive it the way a controlling computer does.

Offline commands (encode, replay) need no hardware.

Connection modes for the host channel:
  Serial:    --port /dev/ttyACM0 [--baud 500000]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the DVSBRIDGE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

func init() {
	// Host channel flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Host serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 500000, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Sensor flags
	rootCmd.PersistentFlags().StringVarP(&sensorPort, "sensor", "s", "", "eDVS serial port device")
	rootCmd.PersistentFlags().IntVar(&sensorBaud, "sensor-baud", 500000, "eDVS baud rate")

	// Ambient flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded sensor events",
	Long: `Continuously decode and display eDVS events as they arrive on --sensor.

Each event is printed with a timestamp, its coordinates and polarity. Bytes
that do not form a valid two byte frame are skipped and counted as resyncs.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenSensorConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("dvsbridge - Raw Event Log\n")
	fmt.Printf("%s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := dvs.NewDecoder()
	buf := make([]byte, 128)
	resyncs := decoder.Resyncs()

	for {
		n, err := conn.Read(buf)
		if err != nil {
			log.Printf("Read error: %v", err)
			return nil
		}

		for i := 0; i < n; i++ {
			event, ok := decoder.DecodeByte(buf[i])
			if r := decoder.Resyncs(); r != resyncs {
				fmt.Printf("[RESYNC] total %d\n", r)
				resyncs = r
			}
			if ok {
				fmt.Print(dvs.FormatEvent(event))
			}
		}
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// dvsbridge - event camera to SpiNNaker link bridge
//
// Decodes the eDVS event stream, downsamples it and relays it over the
// 2-of-7 asynchronous link, with host side tools for driving a bridge
// through its command console.

package main

import (
	"os"

	"github.com/Thermoquad/dvsbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dvs

import (
	"fmt"
	"time"
)

// FormatEvent formats an event as a single log line
func FormatEvent(e Event) string {
	timestamp := time.Now().Format("15:04:05.000")
	return fmt.Sprintf("[%s] EVENT x=%3d y=%3d %s\n", timestamp, e.X, e.Y, FormatPolarity(e.Polarity))
}

// FormatPolarity returns "ON" or "OFF"
func FormatPolarity(p uint8) string {
	if p != 0 {
		return "ON"
	}
	return "OFF"
}

// HostRecord returns the bytes written to the host when sensor forwarding is
// enabled. The record terminator is appended by the host channel.
func HostRecord(e Event) []byte {
	return []byte{e.X, e.Y, e.Polarity}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/Thermoquad/dvsbridge/pkg/spinnlink"
)

// Statistics holds the counters updated by the bridge tasks.
type Statistics struct {
	StartTime time.Time

	BytesIn         atomic.Uint64
	BytesDropped    atomic.Uint64
	Events          atomic.Uint64
	Injected        atomic.Uint64
	Resyncs         atomic.Uint64
	AggregatorDrops atomic.Uint64
	Emitted         atomic.Uint64
	HostRecords     atomic.Uint64
	PacketsQueued   atomic.Uint64
	ValuesForwarded atomic.Uint64
	ValuesLocal     atomic.Uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// Snapshot is a consistent-enough copy of the bridge state for display.
type Snapshot struct {
	Uptime time.Duration

	BytesIn          uint64
	BytesDropped     uint64
	Events           uint64
	Injected         uint64
	Resyncs          uint64
	AggregatorDrops  uint64
	Emitted          uint64
	HostRecords      uint64
	PacketsQueued    uint64
	PacketsEvicted   uint64
	SymbolsDriven    uint64
	SymbolsForwarded uint64
	FramesReceived   uint64
	FramesDropped    uint64
	ValuesForwarded  uint64
	ValuesLocal      uint64

	Pending    int
	Capacity   int
	QueueLen   int
	QueueCap   int
	Resolution dvs.Resolution
	TxState    spinnlink.TransmitterState

	SensorForwarding  bool
	LinkForwarding    bool
	ReceiveForwarding bool

	// Rates (calculated)
	EventRate float64 // events/sec
	EmitRate  float64 // emitted events/sec
}

// CalculateRates fills in the per-second rates from the counters
func (s *Snapshot) CalculateRates() {
	elapsed := s.Uptime.Seconds()
	if elapsed > 0 {
		s.EventRate = float64(s.Events) / elapsed
		s.EmitRate = float64(s.Emitted) / elapsed
	}
}

// String returns a formatted statistics summary
func (s Snapshot) String() string {
	var b strings.Builder

	b.WriteString("\n=== Bridge Statistics ===\n")
	fmt.Fprintf(&b, "Uptime: %s\n", s.Uptime.Round(time.Second))
	fmt.Fprintf(&b, "Resolution: %s (%dx%d)\n", s.Resolution, s.Resolution.Side(), s.Resolution.Side())
	b.WriteString("\nSensor:\n")
	fmt.Fprintf(&b, "  Bytes: %d (dropped %d)\n", s.BytesIn, s.BytesDropped)
	fmt.Fprintf(&b, "  Events: %d (%.1f/s, injected %d)\n", s.Events, s.EventRate, s.Injected)
	fmt.Fprintf(&b, "  Resyncs: %d\n", s.Resyncs)
	b.WriteString("\nAggregator:\n")
	fmt.Fprintf(&b, "  Pending: %d/%d\n", s.Pending, s.Capacity)
	fmt.Fprintf(&b, "  Emitted: %d (%.1f/s)\n", s.Emitted, s.EmitRate)
	fmt.Fprintf(&b, "  Dropped: %d\n", s.AggregatorDrops)
	b.WriteString("\nLink transmit:\n")
	fmt.Fprintf(&b, "  Queue: %d/%d (evicted %d)\n", s.QueueLen, s.QueueCap, s.PacketsEvicted)
	fmt.Fprintf(&b, "  Packets queued: %d\n", s.PacketsQueued)
	fmt.Fprintf(&b, "  Symbols driven: %d\n", s.SymbolsDriven)
	fmt.Fprintf(&b, "  Symbols forwarded: %d\n", s.SymbolsForwarded)
	fmt.Fprintf(&b, "  State: %s\n", s.TxState)
	b.WriteString("\nLink receive:\n")
	fmt.Fprintf(&b, "  Frames: %d (dropped %d)\n", s.FramesReceived, s.FramesDropped)
	fmt.Fprintf(&b, "  Values: %d forwarded, %d local\n", s.ValuesForwarded, s.ValuesLocal)
	b.WriteString("\nForwarding:\n")
	fmt.Fprintf(&b, "  Sensor: %s  Link: %s  Receive: %s\n",
		onOff(s.SensorForwarding), onOff(s.LinkForwarding), onOff(s.ReceiveForwarding))
	b.WriteString("=========================\n")

	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

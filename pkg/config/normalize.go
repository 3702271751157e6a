// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

// Defaults
const (
	DefaultSensorBaud    = 500000
	DefaultHostBaud      = 500000
	DefaultQueuePackets  = 20
	DefaultDisableWaitMS = 100
	DefaultCapacity      = 500
	DefaultResolution    = "full"
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxAgeDays = 7
	DefaultLogMaxBackups = 3
)

// DefaultAddress is the routing key a0..a3 used when none is configured.
var DefaultAddress = []uint8{0x0, 0x2, 0x0, 0x0}

// Normalize fills every unset field with its default
func Normalize(cfg *Config) {
	if cfg.Sensor.Baud == 0 {
		cfg.Sensor.Baud = DefaultSensorBaud
	}
	if cfg.Host.Baud == 0 {
		cfg.Host.Baud = DefaultHostBaud
	}
	if cfg.Link.Bus == "" {
		cfg.Link.Bus = BusLoopback
	}
	if len(cfg.Link.Address) == 0 {
		cfg.Link.Address = append([]uint8(nil), DefaultAddress...)
	}
	if cfg.Link.QueuePackets == 0 {
		cfg.Link.QueuePackets = DefaultQueuePackets
	}
	if cfg.Link.DisableWaitMS == 0 {
		cfg.Link.DisableWaitMS = DefaultDisableWaitMS
	}
	if cfg.Aggregator.Capacity == 0 {
		cfg.Aggregator.Capacity = DefaultCapacity
	}
	if cfg.Aggregator.Resolution == "" {
		cfg.Aggregator.Resolution = DefaultResolution
	}
	if cfg.Logs.MaxSizeMB == 0 {
		cfg.Logs.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if cfg.Logs.MaxAgeDays == 0 {
		cfg.Logs.MaxAgeDays = DefaultLogMaxAgeDays
	}
	if cfg.Logs.MaxBackups == 0 {
		cfg.Logs.MaxBackups = DefaultLogMaxBackups
	}
}

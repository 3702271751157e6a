// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"net/url"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
)

// Validate checks configuration correctness.
// It performs declarative validation only and never mutates cfg.
func Validate(cfg *Config) error {
	if cfg.Sensor.Baud < 0 {
		return fmt.Errorf("sensor: baud must be positive, got %d", cfg.Sensor.Baud)
	}
	if cfg.Host.Baud < 0 {
		return fmt.Errorf("host: baud must be positive, got %d", cfg.Host.Baud)
	}
	if cfg.Host.Port != "" && cfg.Host.URL != "" {
		return fmt.Errorf("host: port and url are mutually exclusive")
	}
	if cfg.Host.URL != "" {
		u, err := url.Parse(cfg.Host.URL)
		if err != nil {
			return fmt.Errorf("host: invalid url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("host: unsupported url scheme %q (use ws:// or wss://)", u.Scheme)
		}
	}

	switch cfg.Link.Bus {
	case BusLoopback, BusNone:
	default:
		return fmt.Errorf("link: unknown bus %q", cfg.Link.Bus)
	}
	if len(cfg.Link.Address) != 4 {
		return fmt.Errorf("link: address must have 4 nibbles, got %d", len(cfg.Link.Address))
	}
	for i, n := range cfg.Link.Address {
		if n > 0x0F {
			return fmt.Errorf("link: address nibble a%d = %#x exceeds 0xF", i, n)
		}
	}
	if cfg.Link.QueuePackets < 1 {
		return fmt.Errorf("link: queue_packets must be at least 1, got %d", cfg.Link.QueuePackets)
	}
	if cfg.Link.DisableWaitMS < 1 {
		return fmt.Errorf("link: disable_wait_ms must be at least 1, got %d", cfg.Link.DisableWaitMS)
	}

	if cfg.Aggregator.Capacity < 1 {
		return fmt.Errorf("aggregator: capacity must be at least 1, got %d", cfg.Aggregator.Capacity)
	}
	if _, err := dvs.ParseResolution(cfg.Aggregator.Resolution); err != nil {
		return fmt.Errorf("aggregator: %w", err)
	}

	if cfg.Logs.MaxSizeMB < 0 || cfg.Logs.MaxAgeDays < 0 || cfg.Logs.MaxBackups < 0 {
		return fmt.Errorf("logs: rotation limits must not be negative")
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the bridge configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Sensor     SerialConfig     `yaml:"sensor"`
	Host       HostConfig       `yaml:"host"`
	Link       LinkConfig       `yaml:"link"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Logs       LogConfig        `yaml:"logs"`
	Capture    CaptureConfig    `yaml:"capture"`
}

// SerialConfig describes a UART.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// HostConfig describes the channel to the controlling computer. Either a
// serial port or a WebSocket URL; with neither, host traffic goes to stdout.
type HostConfig struct {
	SerialConfig `yaml:",inline"`
	URL          string `yaml:"url"`
	Username     string `yaml:"username"`
	NoSSLVerify  bool   `yaml:"no_ssl_verify"`
	Console      bool   `yaml:"console"`
}

// LinkConfig describes the peer link.
type LinkConfig struct {
	Bus           string  `yaml:"bus"`
	Address       []uint8 `yaml:"address"` // a0..a3
	QueuePackets  int     `yaml:"queue_packets"`
	DisableWaitMS int     `yaml:"disable_wait_ms"`
}

// AggregatorConfig configures spatial downsampling.
type AggregatorConfig struct {
	Capacity   int    `yaml:"capacity"`
	Resolution string `yaml:"resolution"`
}

// LogConfig configures the optional rotating log file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// CaptureConfig configures event capture.
type CaptureConfig struct {
	File string `yaml:"file"`
}

// Bus kinds
const (
	BusLoopback = "loopback"
	BusNone     = "none"
)

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Load reads, normalizes and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

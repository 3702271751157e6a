// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Thermoquad/dvsbridge/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

// settings is the merged configuration file and command line
var settings = config.Default()

// logFileWriter is the rotating log file, or io.Discard when none is set
var logFileWriter io.Writer = io.Discard

// loadSettings reads --config and applies explicitly set flags on top
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Host.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Host.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Host.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Host.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Host.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("sensor") {
		cfg.Sensor.Port = sensorPort
	}
	if flags.Changed("sensor-baud") {
		cfg.Sensor.Baud = sensorBaud
	}
	if flags.Changed("log-file") {
		cfg.Logs.File = logFile
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// setupLogging loads settings and, when a log file is configured, tees the
// standard logger into a rotating file.
func setupLogging(cmd *cobra.Command) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	settings = cfg

	if cfg.Logs.File == "" {
		return nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Logs.File,
		MaxSize:    cfg.Logs.MaxSizeMB,
		MaxAge:     cfg.Logs.MaxAgeDays,
		MaxBackups: cfg.Logs.MaxBackups,
		Compress:   cfg.Logs.Compress,
	}
	logFileWriter = rotator
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return nil
}

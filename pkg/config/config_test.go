// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if diff := cmp.Diff(DefaultAddress, cfg.Link.Address); diff != "" {
		t.Errorf("address (-want +got):\n%s", diff)
	}
	if cfg.Link.QueuePackets != DefaultQueuePackets {
		t.Errorf("QueuePackets = %d", cfg.Link.QueuePackets)
	}
	if cfg.Link.Bus != BusLoopback {
		t.Errorf("Bus = %q", cfg.Link.Bus)
	}
}

func TestLoad(t *testing.T) {
	data := `
sensor:
  port: /dev/ttyUSB0
  baud: 4000000
host:
  url: wss://bridge.local/ws
  username: admin
  console: true
link:
  address: [1, 2, 3, 4]
  queue_packets: 8
aggregator:
  resolution: quarter
logs:
  file: /tmp/dvsbridge.log
`
	path := filepath.Join(t.TempDir(), "dvsbridge.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := &Config{
		Sensor: SerialConfig{Port: "/dev/ttyUSB0", Baud: 4000000},
		Host: HostConfig{
			SerialConfig: SerialConfig{Baud: DefaultHostBaud},
			URL:          "wss://bridge.local/ws",
			Username:     "admin",
			Console:      true,
		},
		Link: LinkConfig{
			Bus:           BusLoopback,
			Address:       []uint8{1, 2, 3, 4},
			QueuePackets:  8,
			DisableWaitMS: DefaultDisableWaitMS,
		},
		Aggregator: AggregatorConfig{Capacity: DefaultCapacity, Resolution: "quarter"},
		Logs: LogConfig{
			File:       "/tmp/dvsbridge.log",
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxAgeDays: DefaultLogMaxAgeDays,
			MaxBackups: DefaultLogMaxBackups,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"unknown key", "sensor:\n  speed: 9\n", "field speed not found"},
		{"short address", "link:\n  address: [1, 2]\n", "4 nibbles"},
		{"wide nibble", "link:\n  address: [0, 16, 0, 0]\n", "exceeds 0xF"},
		{"bad resolution", "aggregator:\n  resolution: tiny\n", "invalid resolution"},
		{"bad bus", "link:\n  bus: gpio\n", "unknown bus"},
		{"negative queue", "link:\n  queue_packets: -1\n", "queue_packets"},
		{"port and url", "host:\n  port: /dev/ttyACM0\n  url: ws://x\n", "mutually exclusive"},
		{"http url", "host:\n  url: http://x\n", "unsupported url scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	cfg := &Config{}
	before := *cfg
	_ = Validate(cfg)
	if diff := cmp.Diff(before, *cfg); diff != "" {
		t.Errorf("Validate mutated config:\n%s", diff)
	}
}

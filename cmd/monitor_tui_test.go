// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"testing"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/bridge"
	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/google/go-cmp/cmp"
)

type fakeBridge struct {
	calls []string
}

func (f *fakeBridge) Stats() bridge.Snapshot { return bridge.Snapshot{} }
func (f *fakeBridge) EnableSensorForwarding(d time.Duration) {
	f.calls = append(f.calls, "dvs "+d.String())
}
func (f *fakeBridge) DisableSensorForwarding() { f.calls = append(f.calls, "dvs off") }
func (f *fakeBridge) EnableLinkForwarding(d time.Duration) {
	f.calls = append(f.calls, "spn "+d.String())
}
func (f *fakeBridge) DisableLinkForwarding() { f.calls = append(f.calls, "spn off") }
func (f *fakeBridge) EnableReceiveForwarding(d time.Duration) {
	f.calls = append(f.calls, "rcv "+d.String())
}
func (f *fakeBridge) DisableReceiveForwarding() { f.calls = append(f.calls, "rcv off") }
func (f *fakeBridge) InjectEvent(e dvs.Event) error {
	f.calls = append(f.calls, fmt.Sprintf("inject %d %d %d", e.X, e.Y, e.Polarity))
	return nil
}
func (f *fakeBridge) SetResolution(r dvs.Resolution) error {
	f.calls = append(f.calls, "mode "+r.String())
	return nil
}
func (f *fakeBridge) Reset() error {
	f.calls = append(f.calls, "reset")
	return nil
}

func TestMonitorExecute(t *testing.T) {
	fb := &fakeBridge{}
	m := initialMonitorModel(fb, "sensor", "host")

	lines := []string{
		"fwd dvs 1500",
		"fwd spn 0",
		"stop rcv",
		"inject 10 20 1",
		"mode half",
		"reset",
	}
	for _, line := range lines {
		if err := m.execute(line); err != nil {
			t.Fatalf("execute(%q): %v", line, err)
		}
	}

	want := []string{
		"dvs 1.5s",
		"spn 0s",
		"rcv off",
		"inject 10 20 1",
		"mode " + dvs.ResolutionHalf.String(),
		"reset",
	}
	if diff := cmp.Diff(want, fb.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestMonitorExecuteErrors(t *testing.T) {
	m := initialMonitorModel(&fakeBridge{}, "sensor", "host")
	for _, line := range []string{
		"bogus",
		"fwd dvs",
		"fwd xyz 10",
		"fwd dvs 70000",
		"stop",
		"inject 1 2",
		"inject 1 2 300",
		"mode tiny",
	} {
		if err := m.execute(line); err == nil {
			t.Errorf("execute(%q) succeeded, want error", line)
		}
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
)

func TestSnapshotCalculateRates(t *testing.T) {
	s := Snapshot{Uptime: 4 * time.Second, Events: 100, Emitted: 10}
	s.CalculateRates()
	if s.EventRate != 25 {
		t.Errorf("EventRate = %v, want 25", s.EventRate)
	}
	if s.EmitRate != 2.5 {
		t.Errorf("EmitRate = %v, want 2.5", s.EmitRate)
	}

	var zero Snapshot
	zero.CalculateRates()
	if zero.EventRate != 0 || zero.EmitRate != 0 {
		t.Errorf("zero uptime rates = %v, %v", zero.EventRate, zero.EmitRate)
	}
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		Uptime:         time.Minute,
		Resolution:     dvs.ResolutionQuarter,
		Events:         42,
		PacketsEvicted: 3,
		LinkForwarding: true,
	}
	out := s.String()
	for _, want := range []string{
		"=== Bridge Statistics ===",
		"Resolution: quarter (32x32)",
		"Events: 42",
		"evicted 3",
		"Sensor: off  Link: on  Receive: off",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
}

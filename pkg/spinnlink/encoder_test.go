// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package spinnlink

import (
	"fmt"
	"math/bits"
	"testing"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/google/go-cmp/cmp"
)

func TestSymbolTableIsTwoOfSeven(t *testing.T) {
	seen := make(map[byte]bool)
	for i, sym := range Symbols {
		if bits.OnesCount8(sym) != 2 {
			t.Errorf("symbol %d (%#02x) has %d bits set", i, sym, bits.OnesCount8(sym))
		}
		if sym&^LineMask != 0 {
			t.Errorf("symbol %d (%#02x) uses bit 7", i, sym)
		}
		if seen[sym] {
			t.Errorf("symbol %#02x appears twice", sym)
		}
		seen[sym] = true
	}
	if Symbols[16] != EOP {
		t.Errorf("last symbol = %#02x, want EOP", Symbols[16])
	}
}

func TestEncodeVectors(t *testing.T) {
	tail := []byte{0x11, 0x11, 0x14, 0x11, 0x60}
	tests := []struct {
		event      dvs.Event
		resolution dvs.Resolution
		head       []byte
	}{
		{dvs.Event{X: 10, Y: 30, Polarity: 1}, dvs.ResolutionFull, []byte{0x11, 0x11, 0x44, 0x11, 0x09, 0x03}},
		{dvs.Event{X: 10, Y: 30, Polarity: 1}, dvs.ResolutionHalf, []byte{0x11, 0x11, 0x22, 0x03, 0x18, 0x03}},
		{dvs.Event{X: 10, Y: 30, Polarity: 1}, dvs.ResolutionQuarter, []byte{0x11, 0x11, 0x14, 0x0C, 0x11, 0x03}},
		{dvs.Event{X: 10, Y: 30, Polarity: 1}, dvs.ResolutionEighth, []byte{0x12, 0x11, 0x12, 0x18, 0x11, 0x03}},
		{dvs.Event{X: 54, Y: 99, Polarity: 0}, dvs.ResolutionFull, []byte{0x12, 0x11, 0x24, 0x48, 0x12, 0x48}},
		{dvs.Event{X: 54, Y: 99, Polarity: 0}, dvs.ResolutionHalf, []byte{0x11, 0x11, 0x48, 0x22, 0x03, 0x41}},
		{dvs.Event{X: 54, Y: 99, Polarity: 0}, dvs.ResolutionQuarter, []byte{0x11, 0x11, 0x06, 0x11, 0x18, 0x41}},
		{dvs.Event{X: 54, Y: 99, Polarity: 0}, dvs.ResolutionEighth, []byte{0x12, 0x11, 0x24, 0x03, 0x11, 0x41}},
		{dvs.Event{X: 5, Y: 5, Polarity: 1}, dvs.ResolutionFull, []byte{0x11, 0x11, 0x22, 0x41, 0x14, 0x03}},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s x=%d y=%d pol=%d", tt.resolution, tt.event.X, tt.event.Y, tt.event.Polarity)
		t.Run(name, func(t *testing.T) {
			enc, err := NewEncoder(tt.resolution, DefaultAddress)
			if err != nil {
				t.Fatal(err)
			}
			got := enc.Encode(tt.event)
			want := append(append([]byte{}, tt.head...), tail...)
			if diff := cmp.Diff(want, got[:]); diff != "" {
				t.Errorf("Encode(%+v) mismatch (-want +got):\n%s", tt.event, diff)
			}
		})
	}
}

func TestEventPayload(t *testing.T) {
	tests := []struct {
		event      dvs.Event
		resolution dvs.Resolution
		want       uint16
	}{
		{dvs.Event{X: 5, Y: 5, Polarity: 1}, dvs.ResolutionFull, 0xC285},
		{dvs.Event{X: 127, Y: 127, Polarity: 0}, dvs.ResolutionFull, 0xBFFF},
		{dvs.Event{X: 10, Y: 30, Polarity: 1}, dvs.ResolutionHalf, 0xC3C5},
		{dvs.Event{X: 54, Y: 99, Polarity: 0}, dvs.ResolutionEighth, 0x80C6},
		{dvs.Event{X: 0, Y: 0, Polarity: 0}, dvs.ResolutionQuarter, 0x8000},
	}
	for _, tt := range tests {
		if got := EventPayload(tt.event, tt.resolution); got != tt.want {
			t.Errorf("EventPayload(%+v, %v) = %#04x, want %#04x", tt.event, tt.resolution, got, tt.want)
		}
	}
}

func TestParity(t *testing.T) {
	tests := []struct {
		payload uint16
		address Address
		want    uint8
	}{
		{0xC285, DefaultAddress, 0},
		{0xB1B6, DefaultAddress, 1},
		{0x0000, Address{}, 1},
		{0x0001, Address{}, 0},
		{0x0000, Address{1, 0, 0, 0}, 0},
	}
	for _, tt := range tests {
		if got := Parity(tt.payload, tt.address); got != tt.want {
			t.Errorf("Parity(%#04x, %v) = %d, want %d", tt.payload, tt.address, got, tt.want)
		}
	}
}

func TestPacketPayloadRoundTrip(t *testing.T) {
	for _, r := range []dvs.Resolution{dvs.ResolutionFull, dvs.ResolutionHalf, dvs.ResolutionQuarter, dvs.ResolutionEighth} {
		enc, err := NewEncoder(r, DefaultAddress)
		if err != nil {
			t.Fatal(err)
		}
		for x := 0; x < dvs.SensorWidth; x += 3 {
			e := dvs.Event{X: uint8(x), Y: uint8(127 - x), Polarity: uint8(x & 1)}
			p := enc.Encode(e)
			got, ok := p.Payload()
			if !ok {
				t.Fatalf("packet %v did not decode", p)
			}
			if want := EventPayload(e, r); got != want {
				t.Fatalf("%v: payload %#04x, want %#04x", r, got, want)
			}
		}
	}
}

func TestEncoderRejectsBadInput(t *testing.T) {
	if _, err := NewEncoder(dvs.Resolution(5), DefaultAddress); err == nil {
		t.Error("expected error for resolution 5")
	}
	if _, err := NewEncoder(dvs.ResolutionFull, Address{0, 0x10, 0, 0}); err == nil {
		t.Error("expected error for address nibble 0x10")
	}
}

func TestPacketString(t *testing.T) {
	p := BuildPacket(0xC285, DefaultAddress)
	want := "11 11 22 41 14 03 11 11 14 11 60"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

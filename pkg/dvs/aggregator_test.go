// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dvs

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func grid(side int, pol func(idx int) uint8) []Event {
	events := make([]Event, 0, side*side)
	for idx := 0; idx < side*side; idx++ {
		events = append(events, Event{X: uint8(idx % side), Y: uint8(idx / side), Polarity: pol(idx)})
	}
	return events
}

func offset(events []Event, x, y uint8) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = Event{X: e.X + x, Y: e.Y + y, Polarity: e.Polarity}
	}
	return out
}

func feed(t *testing.T, r Resolution, events []Event) []Event {
	t.Helper()
	a, err := NewAggregator(DefaultAggregatorCapacity, r)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	var out []Event
	for _, e := range events {
		if emitted, ok := a.Update(e); ok {
			out = append(out, emitted)
		}
	}
	return out
}

func TestAggregatorFullPassesThrough(t *testing.T) {
	var in []Event
	for p := 10; p < 120; p += 20 {
		in = append(in, Event{X: uint8(p), Y: uint8(p), Polarity: uint8(p % 2)})
	}
	got := feed(t, ResolutionFull, in)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("full resolution changed events (-want +got):\n%s", diff)
	}
}

func TestAggregatorBlocks(t *testing.T) {
	allNeg32 := grid(4, func(int) uint8 { return 0 })
	allNeg16 := grid(8, func(int) uint8 { return 0 })
	alternating32 := grid(4, func(idx int) uint8 { return uint8(idx & 1) })

	manyNeg32 := append(append(append([]Event{}, allNeg32[1:7]...), allNeg32[9:12]...), allNeg32[13:15]...)
	manyNeg16 := append(append(append(append(append([]Event{},
		allNeg16[:6]...), allNeg16[8:22]...), allNeg16[23:29]...), allNeg16[33:49]...), allNeg16[56:]...)

	tests := []struct {
		name       string
		resolution Resolution
		input      []Event
		want       []Event
	}{
		{"half too few", ResolutionHalf, []Event{{0, 0, 1}}, nil},
		{"half just enough", ResolutionHalf, []Event{{0, 0, 1}, {1, 1, 1}}, []Event{{0, 0, 1}}},
		{"half positive block then negative block", ResolutionHalf,
			[]Event{{0, 0, 1}, {1, 1, 1}, {0, 1, 0}, {1, 0, 0}},
			[]Event{{0, 0, 1}, {0, 0, 0}}},
		{"half tie", ResolutionHalf,
			[]Event{{0, 0, 1}, {1, 1, 0}},
			[]Event{{0, 0, 0}}},
		{"half many negative", ResolutionHalf,
			[]Event{{0, 1, 0}, {1, 1, 0}, {1, 0, 0}},
			[]Event{{0, 0, 0}}},
		{"half offset", ResolutionHalf,
			offset([]Event{{0, 0, 1}, {1, 1, 1}}, 46, 92),
			[]Event{{46, 92, 1}}},
		{"quarter too few", ResolutionQuarter,
			[]Event{{1, 0, 0}, {2, 0, 1}, {0, 1, 1}, {2, 2, 0}, {3, 2, 1}, {1, 3, 0}}, nil},
		{"quarter just enough with duplicate", ResolutionQuarter,
			[]Event{{0, 0, 1}, {3, 0, 1}, {1, 1, 1}, {2, 1, 1}, {1, 2, 1}, {2, 2, 1}, {3, 0, 1}, {3, 3, 1}},
			[]Event{{0, 0, 1}}},
		{"quarter all negative", ResolutionQuarter, allNeg32, []Event{{0, 0, 0}, {0, 0, 0}}},
		{"quarter many negative", ResolutionQuarter, manyNeg32, []Event{{0, 0, 0}}},
		// Each run of eight fills the threshold again, so the block fires twice.
		{"quarter alternating", ResolutionQuarter, alternating32, []Event{{0, 0, 0}, {0, 0, 0}}},
		{"quarter offset", ResolutionQuarter, offset(manyNeg32, 44, 92), []Event{{44, 92, 0}}},
		{"eighth too few", ResolutionEighth,
			[]Event{{2, 0, 1}, {7, 0, 0}, {5, 2, 0}, {1, 3, 1}, {3, 4, 0}, {6, 4, 0}, {1, 6, 1}, {4, 6, 1}}, nil},
		{"eighth many negative", ResolutionEighth, manyNeg16, []Event{{0, 0, 0}}},
		{"eighth offset", ResolutionEighth, offset(manyNeg16, 40, 88), []Event{{40, 88, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feed(t, tt.resolution, tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("emitted events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAggregatorReleasesContributingSlots(t *testing.T) {
	a, err := NewAggregator(10, ResolutionHalf)
	if err != nil {
		t.Fatal(err)
	}
	a.Update(Event{X: 10, Y: 10, Polarity: 1}) // other block
	a.Update(Event{X: 0, Y: 0, Polarity: 1})
	if a.Pending() != 2 {
		t.Fatalf("Pending() before emit = %d, want 2", a.Pending())
	}
	if _, ok := a.Update(Event{X: 1, Y: 0, Polarity: 1}); !ok {
		t.Fatal("expected block to fire")
	}
	if a.Pending() != 1 {
		t.Errorf("Pending() after emit = %d, want 1", a.Pending())
	}
	if a.highWater != 1 {
		t.Errorf("highWater = %d, want 1", a.highWater)
	}
}

func TestAggregatorDropsWhenFull(t *testing.T) {
	a, err := NewAggregator(3, ResolutionHalf)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint8(0); i < 3; i++ {
		if _, ok := a.Update(Event{X: i * 10, Y: 0, Polarity: 1}); ok {
			t.Fatalf("unexpected emit for event %d", i)
		}
	}
	// Would complete the first block, but there is no slot for it.
	if _, ok := a.Update(Event{X: 1, Y: 1, Polarity: 1}); ok {
		t.Error("event should have been dropped")
	}
	if a.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", a.Dropped())
	}
	if a.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", a.Pending())
	}
}

func TestAggregatorSetResolutionClears(t *testing.T) {
	a, err := NewAggregator(DefaultAggregatorCapacity, ResolutionHalf)
	if err != nil {
		t.Fatal(err)
	}
	a.Update(Event{X: 0, Y: 0, Polarity: 1})
	if err := a.SetResolution(ResolutionHalf); err != nil {
		t.Fatal(err)
	}
	if a.Pending() != 0 {
		t.Fatalf("Pending() = %d after mode change, want 0", a.Pending())
	}
	if _, ok := a.Update(Event{X: 1, Y: 1, Polarity: 1}); ok {
		t.Error("pending event survived a mode change")
	}
	if err := a.SetResolution(Resolution(4)); !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("SetResolution(4) error = %v, want ErrInvalidResolution", err)
	}
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in   string
		want Resolution
		ok   bool
	}{
		{"full", ResolutionFull, true},
		{"64", ResolutionHalf, true},
		{"Quarter", ResolutionQuarter, true},
		{"3", ResolutionEighth, true},
		{"4", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseResolution(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseResolution(%q) error = %v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseResolution(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dvs

import "fmt"

type slot struct {
	occupied bool
	event    Event
}

// Aggregator combines fine events into blocks of width x width pixels.
//
// Pending events live in a fixed slot array. A block fires once it holds at
// least half of its pixel count in events; the emitted event sits at the
// block's minimum corner with the majority polarity (ties go to 0). All
// contributing slots are released when a block fires.
//
// An Aggregator is not safe for concurrent use.
type Aggregator struct {
	resolution Resolution
	slots      []slot
	used       int
	highWater  int // one past the highest occupied slot
	dropped    uint64
}

// NewAggregator creates an aggregator with the given number of pending slots
func NewAggregator(capacity int, resolution Resolution) (*Aggregator, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("aggregator capacity must be positive, got %d", capacity)
	}
	if !resolution.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidResolution, resolution)
	}
	return &Aggregator{
		resolution: resolution,
		slots:      make([]slot, capacity),
	}, nil
}

// Resolution returns the active resolution
func (a *Aggregator) Resolution() Resolution {
	return a.resolution
}

// SetResolution switches resolution and discards every pending event
func (a *Aggregator) SetResolution(r Resolution) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidResolution, r)
	}
	a.resolution = r
	a.Clear()
	return nil
}

// Clear releases all pending slots
func (a *Aggregator) Clear() {
	clear(a.slots)
	a.used = 0
	a.highWater = 0
}

// Pending returns the number of occupied slots
func (a *Aggregator) Pending() int {
	return a.used
}

// Capacity returns the number of slots
func (a *Aggregator) Capacity() int {
	return len(a.slots)
}

// Dropped returns the number of events discarded because every slot was taken
func (a *Aggregator) Dropped() uint64 {
	return a.dropped
}

// Update adds an event and returns the aggregated event if its block fired
func (a *Aggregator) Update(e Event) (Event, bool) {
	width := a.resolution.Width()
	if width == 1 {
		return e, true
	}

	if a.used == len(a.slots) {
		a.dropped++
		return Event{}, false
	}

	for i := range a.slots {
		if !a.slots[i].occupied {
			a.slots[i] = slot{occupied: true, event: e}
			a.used++
			if i >= a.highWater {
				a.highWater = i + 1
			}
			break
		}
	}

	minX := e.X - e.X%width
	minY := e.Y - e.Y%width

	var positive, negative int
	for i := 0; i < a.highWater; i++ {
		s := &a.slots[i]
		if s.occupied && inBlock(s.event, minX, minY, width) {
			if s.event.Polarity != 0 {
				positive++
			} else {
				negative++
			}
		}
	}

	if positive+negative < int(width)*int(width)/2 {
		return Event{}, false
	}

	for i := 0; i < a.highWater; i++ {
		s := &a.slots[i]
		if s.occupied && inBlock(s.event, minX, minY, width) {
			*s = slot{}
			a.used--
		}
	}
	for a.highWater > 0 && !a.slots[a.highWater-1].occupied {
		a.highWater--
	}

	var polarity uint8
	if positive > negative {
		polarity = 1
	}
	return Event{X: minX, Y: minY, Polarity: polarity}, true
}

func inBlock(e Event, minX, minY, width uint8) bool {
	return e.X >= minX && e.X < minX+width && e.Y >= minY && e.Y < minY+width
}

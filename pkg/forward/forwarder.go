// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package forward holds the timed on/off switches that divert traffic to
// the host.
package forward

import (
	"log"
	"sync"
	"time"
)

// Forwarder is a mutex guarded flag with an optional one-shot expiry.
//
// Enable, Disable and timer expiry all take the same lock. Each arm bumps a
// generation counter so a timer that fires after being superseded cannot
// clear the flag.
type Forwarder struct {
	name string

	mu         sync.Mutex
	active     bool
	timer      *time.Timer
	generation uint64
	deadline   time.Time
}

// New creates an inactive forwarder. The name is used in log messages.
func New(name string) *Forwarder {
	return &Forwarder{name: name}
}

// Name returns the forwarder name
func (f *Forwarder) Name() string {
	return f.name
}

// Enable sets the flag. A positive timeout clears it again once elapsed;
// zero keeps it set until Disable.
func (f *Forwarder) Enable(timeout time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopTimerLocked()
	f.active = true

	if timeout > 0 {
		generation := f.generation
		f.deadline = time.Now().Add(timeout)
		f.timer = time.AfterFunc(timeout, func() { f.expire(generation) })
	}
}

// Disable clears the flag and cancels any pending expiry
func (f *Forwarder) Disable() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopTimerLocked()
	f.active = false
}

// Active reports whether forwarding is on
func (f *Forwarder) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Deadline returns when the flag will clear, or the zero time if it is
// inactive or has no timeout.
func (f *Forwarder) Deadline() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadline
}

func (f *Forwarder) expire(generation uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if generation != f.generation {
		return
	}
	f.active = false
	f.timer = nil
	f.deadline = time.Time{}
	log.Printf("%s forwarding expired", f.name)
}

func (f *Forwarder) stopTimerLocked() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.generation++
	f.deadline = time.Time{}
}

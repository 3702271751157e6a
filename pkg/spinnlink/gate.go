// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package spinnlink

import (
	"context"
	"time"
)

// Gate is a binary signal. Releasing an already released gate is a no-op.
type Gate struct {
	ch chan struct{}
}

// NewGate creates a gate in the taken state
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{}, 1)}
}

// Release opens the gate without blocking. Safe to call from edge handlers.
func (g *Gate) Release() {
	select {
	case g.ch <- struct{}{}:
	default:
	}
}

// Acquire blocks until the gate is released
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire waits at most d for the gate and reports whether it was taken
func (g *Gate) TryAcquire(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-g.ch:
		return true
	case <-timer.C:
		return false
	}
}

// Released reports whether the gate is currently open
func (g *Gate) Released() bool {
	return len(g.ch) == 1
}

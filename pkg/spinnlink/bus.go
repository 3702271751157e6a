// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package spinnlink

import (
	"math/bits"
	"sync"
)

// TxLines drives the seven outbound data wires.
type TxLines interface {
	Drive(value uint8) error
}

// RxLines samples the seven inbound data wires and owns the acknowledge output.
type RxLines interface {
	Sample() uint8
	ToggleAck() error
}

// Host receives symbols and decoded values while forwarding is enabled.
type Host interface {
	SendByte(b byte) error
	SendRecord(b ...byte) error
}

// Flag reports whether a forwarding mode is active.
type Flag interface {
	Active() bool
}

// EdgeSink is notified of every transition on an input data wire.
type EdgeSink interface {
	Edge()
}

// AckSink is notified of every transition on the acknowledge wire.
type AckSink interface {
	AckEdge()
}

// Loopback is an in-process link peer. Values driven by a Transmitter are
// presented to a Receiver, and the Receiver's acknowledge toggles are fed
// back to the Transmitter.
type Loopback struct {
	mu    sync.Mutex
	lines uint8
	ack   bool
	edges EdgeSink
	acks  AckSink
}

// NewLoopback creates a disconnected loopback bus
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Connect attaches the receiving and acknowledging ends
func (l *Loopback) Connect(edges EdgeSink, acks AckSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.edges = edges
	l.acks = acks
}

// Drive sets the wire levels and raises one edge per changed wire
func (l *Loopback) Drive(value uint8) error {
	l.mu.Lock()
	changed := (l.lines ^ value) & LineMask
	l.lines = value & LineMask
	edges := l.edges
	l.mu.Unlock()

	if edges == nil {
		return nil
	}
	for i := 0; i < bits.OnesCount8(changed); i++ {
		edges.Edge()
	}
	return nil
}

// Sample returns the current wire levels
func (l *Loopback) Sample() uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

// ToggleAck flips the acknowledge wire
func (l *Loopback) ToggleAck() error {
	l.mu.Lock()
	l.ack = !l.ack
	acks := l.acks
	l.mu.Unlock()

	if acks != nil {
		acks.AckEdge()
	}
	return nil
}

// Ack returns the acknowledge wire level
func (l *Loopback) Ack() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ack
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package spinnlink

import (
	"context"
	"log"
	"sync/atomic"
)

// edgesPerSymbol is two because every 2-of-7 symbol flips exactly two wires.
const edgesPerSymbol = 2

const edgeQueueLength = 64

// ValueHandler receives every payload decoded from a complete frame.
type ValueHandler func(value uint16)

// Receiver rebuilds frames from wire transitions.
type Receiver struct {
	lines   RxLines
	handler ValueHandler
	edges   chan struct{}

	prev   uint8 // owned by the Run goroutine
	buffer []byte

	frames    atomic.Uint64
	dropped   atomic.Uint64
	overflows atomic.Uint64
	lostEdges atomic.Uint64
}

// NewReceiver creates a receiver that hands decoded payloads to handler
func NewReceiver(lines RxLines, handler ValueHandler) *Receiver {
	return &Receiver{
		lines:   lines,
		handler: handler,
		edges:   make(chan struct{}, edgeQueueLength),
		buffer:  make([]byte, 0, ReceiveBufferLength),
	}
}

// Edge signals one input wire transition. It never blocks.
func (r *Receiver) Edge() {
	select {
	case r.edges <- struct{}{}:
	default:
		r.lostEdges.Add(1)
	}
}

// Frames returns the number of frames decoded successfully
func (r *Receiver) Frames() uint64 {
	return r.frames.Load()
}

// Dropped returns the number of frames with an unknown symbol
func (r *Receiver) Dropped() uint64 {
	return r.dropped.Load()
}

// Overflows returns the number of frames discarded for running past the buffer
func (r *Receiver) Overflows() uint64 {
	return r.overflows.Load()
}

// LostEdges returns the number of edges that arrived while the edge queue was full
func (r *Receiver) LostEdges() uint64 {
	return r.lostEdges.Load()
}

// Run samples symbols until the context is cancelled
func (r *Receiver) Run(ctx context.Context) error {
	for {
		for i := 0; i < edgesPerSymbol; i++ {
			select {
			case <-r.edges:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		r.sample()
	}
}

func (r *Receiver) sample() {
	current := r.lines.Sample() & LineMask
	sym := current ^ r.prev
	r.prev = current
	r.buffer = append(r.buffer, sym)

	if err := r.lines.ToggleAck(); err != nil {
		log.Printf("link rx: ack toggle failed: %v", err)
	}

	switch {
	case sym == EOP:
		r.complete()
		r.buffer = r.buffer[:0]
	case len(r.buffer) >= ReceiveBufferLength:
		r.overflows.Add(1)
		r.buffer = r.buffer[:0]
	}
}

func (r *Receiver) complete() {
	if len(r.buffer) <= PosNibble3 {
		r.dropped.Add(1)
		return
	}
	value, ok := DecodePayload(r.buffer[PosNibble0 : PosNibble3+1])
	if !ok {
		r.dropped.Add(1)
		return
	}
	r.frames.Add(1)
	if r.handler != nil {
		r.handler(value)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package spinnlink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned by Pop once the queue is closed and drained.
var ErrQueueClosed = errors.New("packet queue closed")

// PacketQueue buffers whole packets between the encoder and the transmitter.
// Push never blocks: when the queue is full the oldest packet is evicted.
type PacketQueue struct {
	mu      sync.Mutex // serializes producers
	packets chan Packet
	closed  bool
	evicted atomic.Uint64
}

// NewPacketQueue creates a queue holding up to capacity packets
func NewPacketQueue(capacity int) *PacketQueue {
	if capacity <= 0 {
		capacity = DefaultQueuePackets
	}
	return &PacketQueue{packets: make(chan Packet, capacity)}
}

// Push enqueues a packet and reports whether an older packet was evicted
func (q *PacketQueue) Push(p Packet) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	select {
	case q.packets <- p:
		return false
	default:
	}

	evicted := false
	select {
	case <-q.packets:
		evicted = true
		q.evicted.Add(1)
	default:
		// The consumer freed a slot in the meantime
	}
	q.packets <- p
	return evicted
}

// Pop blocks until a packet is available
func (q *PacketQueue) Pop(ctx context.Context) (Packet, error) {
	select {
	case p, ok := <-q.packets:
		if !ok {
			return Packet{}, ErrQueueClosed
		}
		return p, nil
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	}
}

// Close stops further pushes. Packets already queued can still be popped.
func (q *PacketQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.packets)
	}
}

// Len returns the number of queued packets
func (q *PacketQueue) Len() int {
	return len(q.packets)
}

// Cap returns the queue capacity in packets
func (q *PacketQueue) Cap() int {
	return cap(q.packets)
}

// Evicted returns the number of packets dropped to make room
func (q *PacketQueue) Evicted() uint64 {
	return q.evicted.Load()
}

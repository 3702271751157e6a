// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package spinnlink

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
)

// TransmitterState is the handshake state of a Transmitter.
type TransmitterState int32

// Handshake states
const (
	StateWaitForAck TransmitterState = iota
	StateSending
)

func (s TransmitterState) String() string {
	if s == StateSending {
		return "SENDING"
	}
	return "WAIT_FOR_ACK"
}

// Transmitter drains the packet queue one symbol per acknowledge.
//
// On the bus each symbol is sent as a transition: the driven value is the
// previous value XOR the symbol. While forwarding is active symbols go to the
// host instead and no acknowledge is awaited.
type Transmitter struct {
	lines      TxLines
	queue      *PacketQueue
	gate       *Gate
	forwarding Flag
	host       Host

	prev       uint8 // owned by the Run goroutine
	recordOpen bool  // forwarded symbols written without a terminator

	state       atomic.Int32
	outstanding atomic.Bool // a driven symbol has not been acknowledged
	driven      atomic.Uint64
	sent        atomic.Uint64
}

// NewTransmitter creates a transmitter. The gate starts released so the
// first symbol does not wait for an acknowledge.
func NewTransmitter(lines TxLines, queue *PacketQueue, forwarding Flag, host Host) *Transmitter {
	t := &Transmitter{
		lines:      lines,
		queue:      queue,
		gate:       NewGate(),
		forwarding: forwarding,
		host:       host,
	}
	t.gate.Release()
	return t
}

// Gate exposes the handshake gate
func (t *Transmitter) Gate() *Gate {
	return t.gate
}

// AckEdge is called on every acknowledge transition from the peer
func (t *Transmitter) AckEdge() {
	t.outstanding.Store(false)
	t.gate.Release()
}

// Prime releases the gate when no driven symbol is waiting for its
// acknowledge. Used when switching back from host forwarding to the bus.
func (t *Transmitter) Prime() {
	if !t.outstanding.Load() {
		t.gate.Release()
	}
}

// State returns the handshake state
func (t *Transmitter) State() TransmitterState {
	return TransmitterState(t.state.Load())
}

// SymbolsDriven returns the number of symbols driven onto the bus
func (t *Transmitter) SymbolsDriven() uint64 {
	return t.driven.Load()
}

// SymbolsForwarded returns the number of symbols written to the host
func (t *Transmitter) SymbolsForwarded() uint64 {
	return t.sent.Load()
}

// Run transmits packets until the context is cancelled or the queue is closed
func (t *Transmitter) Run(ctx context.Context) error {
	for {
		packet, err := t.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}

		for i, sym := range packet {
			if err := t.sendSymbol(ctx, sym, i == PacketLength-1); err != nil {
				return err
			}
		}
	}
}

// sendSymbol sends one symbol. A host record always ends with the last
// symbol of a packet, or with the first symbol that goes back to the bus.
func (t *Transmitter) sendSymbol(ctx context.Context, sym byte, last bool) error {
	t.state.Store(int32(StateWaitForAck))
	if err := t.gate.Acquire(ctx); err != nil {
		return err
	}
	t.state.Store(int32(StateSending))

	if t.forwarding != nil && t.forwarding.Active() {
		if err := t.host.SendByte(sym); err != nil {
			log.Printf("link tx: host write failed: %v", err)
		}
		t.sent.Add(1)
		t.recordOpen = true
		if last {
			t.closeRecord()
		}
		t.gate.Release()
		return nil
	}

	if t.recordOpen {
		t.closeRecord()
	}

	output := (t.prev ^ sym) & LineMask
	t.outstanding.Store(true)
	if err := t.lines.Drive(output); err != nil {
		log.Printf("link tx: drive failed: %v", err)
	}
	t.prev = output
	t.driven.Add(1)
	return nil
}

func (t *Transmitter) closeRecord() {
	t.recordOpen = false
	if err := t.host.SendRecord(); err != nil {
		log.Printf("link tx: host write failed: %v", err)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package spinnlink

import (
	"fmt"
	"math/bits"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
)

// Encoder maps events to link packets for one resolution and address.
type Encoder struct {
	resolution dvs.Resolution
	address    Address
}

// NewEncoder creates an encoder
func NewEncoder(resolution dvs.Resolution, address Address) (*Encoder, error) {
	if !resolution.Valid() {
		return nil, fmt.Errorf("%w: %d", dvs.ErrInvalidResolution, resolution)
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{resolution: resolution, address: address}, nil
}

// SetResolution changes the coordinate packing
func (e *Encoder) SetResolution(r dvs.Resolution) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %d", dvs.ErrInvalidResolution, r)
	}
	e.resolution = r
	return nil
}

// Resolution returns the active packing
func (e *Encoder) Resolution() dvs.Resolution {
	return e.resolution
}

// Encode builds the packet for an event
func (e *Encoder) Encode(ev dvs.Event) Packet {
	return BuildPacket(EventPayload(ev, e.resolution), e.address)
}

// EventPayload packs an event into the 16-bit link payload.
func EventPayload(ev dvs.Event, r dvs.Resolution) uint16 {
	x, y := uint16(ev.X), uint16(ev.Y)

	var coords uint16
	switch r {
	case dvs.ResolutionHalf:
		coords = (y&0x7E)<<5 | (x&0x7E)>>1
	case dvs.ResolutionQuarter:
		coords = (y&0x7C)<<3 | (x&0x7C)>>2
	case dvs.ResolutionEighth:
		coords = (y&0x78)<<1 | (x&0x78)>>3
	default:
		coords = (y&0x7F)<<7 | (x & 0x7F)
	}

	return PayloadBase | uint16(ev.Polarity&1)<<PolarityShift | coords
}

// Parity returns the odd parity bit over the address nibbles and both
// payload bytes.
func Parity(payload uint16, address Address) uint8 {
	x := byte(payload>>8) ^ byte(payload)
	for _, a := range address {
		x ^= a
	}
	return 1 ^ uint8(bits.OnesCount8(x)&1)
}

// BuildPacket assembles the symbol sequence for a payload.
func BuildPacket(payload uint16, address Address) Packet {
	var p Packet
	p[PosParity] = Symbols[Parity(payload, address)]
	p[PosZero] = Symbols[0]
	for i := 0; i < 4; i++ {
		p[PosNibble0+i] = Symbols[(payload>>(4*i))&0x0F]
	}
	for i := 0; i < 4; i++ {
		p[PosAddress+i] = Symbols[address[3-i]&0x0F]
	}
	p[PosEOP] = EOP
	return p
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package spinnlink

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned when an address nibble is out of range.
var ErrInvalidAddress = errors.New("invalid address")

// Address holds the four routing nibbles a0..a3. They are sent on the
// wire highest first.
type Address [4]uint8

// Validate checks that every element fits in a nibble
func (a Address) Validate() error {
	for i, n := range a {
		if n > 0x0F {
			return fmt.Errorf("%w: a%d = %#x", ErrInvalidAddress, i, n)
		}
	}
	return nil
}

// Packet is one encoded link packet:
// parity, zero, four payload nibbles low to high, four address symbols, EOP.
type Packet [PacketLength]byte

// Payload decodes the 16-bit payload from the nibble symbols
func (p Packet) Payload() (uint16, bool) {
	return DecodePayload(p[PosNibble0 : PosNibble3+1])
}

// String renders the packet as space separated hex symbols
func (p Packet) String() string {
	var s strings.Builder
	for i, sym := range p {
		if i > 0 {
			s.WriteByte(' ')
		}
		fmt.Fprintf(&s, "%02X", sym)
	}
	return s.String()
}

// DecodePayload reassembles four nibble symbols, low nibble first.
func DecodePayload(nibbles []byte) (uint16, bool) {
	if len(nibbles) < 4 {
		return 0, false
	}
	var value uint16
	for i := 0; i < 4; i++ {
		n, ok := LookupSymbol(nibbles[i])
		if !ok {
			return 0, false
		}
		value |= uint16(n) << (4 * i)
	}
	return value, true
}

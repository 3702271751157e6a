// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package spinnlink

// Symbols is the 2-of-7 code table. Index 0..15 carries a nibble and index
// 16 is the end-of-packet marker. Every entry has exactly two bits set.
var Symbols = [17]byte{
	0x11, 0x12, 0x14, 0x18,
	0x21, 0x22, 0x24, 0x28,
	0x41, 0x42, 0x44, 0x48,
	0x03, 0x06, 0x0C, 0x09,
	0x60,
}

// Packet framing
const (
	EOP                 = 0x60 // end-of-packet symbol
	PacketLength        = 11   // symbols per packet
	LineMask            = 0x7F // seven data wires
	ReceiveBufferLength = 20   // symbols held by the receiver before a frame is discarded
	DefaultQueuePackets = 20
)

// Symbol positions within a packet
const (
	PosParity  = 0
	PosZero    = 1
	PosNibble0 = 2
	PosNibble3 = 5
	PosAddress = 6
	PosEOP     = 10
)

// Payload layout
const (
	PayloadBase   = 0x8000
	PolarityShift = 14
)

// DefaultAddress holds the four address nibbles a0..a3.
var DefaultAddress = Address{0x0, 0x2, 0x0, 0x0}

var reverseSymbols = func() map[byte]uint8 {
	m := make(map[byte]uint8, 16)
	for i, s := range Symbols[:16] {
		m[s] = uint8(i)
	}
	return m
}()

// LookupSymbol returns the nibble carried by a data symbol.
func LookupSymbol(sym byte) (uint8, bool) {
	n, ok := reverseSymbols[sym]
	return n, ok
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dvs

// Decoder turns the raw sensor byte stream into events.
//
// Frames are two bytes long and the first byte always carries bit 7. When a
// pair does not start with that bit the oldest byte is discarded, so the
// decoder locks onto the stream again after a dropped byte.
type Decoder struct {
	buffer  [FrameLength]byte
	length  int
	resyncs uint64
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Reset clears the frame window
func (d *Decoder) Reset() {
	d.length = 0
}

// DecodeByte processes a single byte and returns an event once a frame is complete
func (d *Decoder) DecodeByte(b byte) (Event, bool) {
	d.buffer[d.length] = b
	d.length++

	if d.length < FrameLength {
		return Event{}, false
	}

	if d.buffer[0]&FrameStartBit == 0 {
		// Out of step: drop the oldest byte and keep the newer ones
		d.resyncs++
		copy(d.buffer[:], d.buffer[1:d.length])
		d.length--
		return Event{}, false
	}

	event := Event{
		X:        d.buffer[1] & CoordinateMask,
		Y:        d.buffer[0] & CoordinateMask,
		Polarity: d.buffer[1] >> 7,
	}
	d.Reset()
	return event, true
}

// Resyncs returns the number of bytes discarded while resynchronizing
func (d *Decoder) Resyncs() uint64 {
	return d.resyncs
}

// EncodeFrame builds the two byte sensor frame for an event. It is the
// inverse of DecodeByte and is used to synthesize sensor traffic.
func EncodeFrame(e Event) [FrameLength]byte {
	return [FrameLength]byte{
		FrameStartBit | (e.Y & CoordinateMask),
		(e.Polarity&1)<<7 | (e.X & CoordinateMask),
	}
}

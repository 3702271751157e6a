// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package host provides the byte channel back to the controlling computer.
package host

import (
	"fmt"
	"io"
	"sync"
)

// Terminator ends every forwarded record and console reply.
const Terminator = '\r'

// Channel serializes writes to the host so records from different tasks
// never interleave.
type Channel struct {
	mu sync.Mutex
	w  io.Writer
}

// NewChannel wraps a writer
func NewChannel(w io.Writer) *Channel {
	return &Channel{w: w}
}

// SendByte writes a single byte
func (c *Channel) SendByte(b byte) error {
	return c.write([]byte{b})
}

// SendBytes writes bytes as one unit
func (c *Channel) SendBytes(b []byte) error {
	return c.write(b)
}

// SendString writes a string followed by the terminator
func (c *Channel) SendString(s string) error {
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, s...)
	buf = append(buf, Terminator)
	return c.write(buf)
}

// SendRecord writes the bytes followed by the terminator
func (c *Channel) SendRecord(b ...byte) error {
	buf := make([]byte, 0, len(b)+1)
	buf = append(buf, b...)
	buf = append(buf, Terminator)
	return c.write(buf)
}

func (c *Channel) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(b); err != nil {
		return fmt.Errorf("host write: %w", err)
	}
	return nil
}

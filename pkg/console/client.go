// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package console

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/Thermoquad/dvsbridge/pkg/host"
)

// DefaultTimeout bounds every wait for a response line.
const DefaultTimeout = time.Second

// ErrTimeout is returned when no line arrives in time.
var ErrTimeout = errors.New("timed out waiting for response")

// ResponseError is a non-success status line.
type ResponseError struct {
	Status string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("bridge replied %q", e.Status)
}

// Client drives a bridge console from the host side.
//
// A reader goroutine splits incoming bytes into lines; it exits when the
// underlying connection returns an error, so close the connection when done.
type Client struct {
	w       io.Writer
	lines   chan []byte
	errs    chan error
	Timeout time.Duration
}

// NewClient starts reading lines from rw
func NewClient(rw io.ReadWriter) *Client {
	c := &Client{
		w:       rw,
		lines:   make(chan []byte, 64),
		errs:    make(chan error, 1),
		Timeout: DefaultTimeout,
	}
	go c.readLoop(rw)
	return c
}

func (c *Client) readLoop(r io.Reader) {
	buf := make([]byte, 128)
	line := make([]byte, 0, LineLength)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			if buf[i] == host.Terminator {
				c.lines <- line
				line = make([]byte, 0, LineLength)
				continue
			}
			line = append(line, buf[i])
		}
		if err != nil {
			c.errs <- err
			return
		}
	}
}

// ReadLine returns the next line without its terminator
func (c *Client) ReadLine() ([]byte, error) {
	timer := time.NewTimer(c.Timeout)
	defer timer.Stop()

	select {
	case line := <-c.lines:
		return line, nil
	case err := <-c.errs:
		return nil, err
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Lines exposes the raw line stream, e.g. for forwarded records
func (c *Client) Lines() <-chan []byte {
	return c.lines
}

// Send writes one command line without waiting for the reply
func (c *Client) Send(op string, params ...byte) error {
	if len(op) != OpcodeLength {
		return fmt.Errorf("opcode %q must be %d characters", op, OpcodeLength)
	}
	msg := make([]byte, 0, OpcodeLength+len(params)+1)
	msg = append(msg, op...)
	msg = append(msg, params...)
	msg = append(msg, host.Terminator)
	if _, err := c.w.Write(msg); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// Command sends a command and returns its status line
func (c *Client) Command(op string, params ...byte) error {
	if err := c.Send(op, params...); err != nil {
		return err
	}
	line, err := c.ReadLine()
	if err != nil {
		return err
	}
	if status := string(line); status != RespSuccess {
		return &ResponseError{Status: status}
	}
	return nil
}

// Identify returns the board identifier
func (c *Client) Identify() (string, error) {
	if err := c.Command(OpIdentify); err != nil {
		return "", err
	}
	line, err := c.ReadLine()
	if err != nil {
		return "", err
	}
	return string(line), nil
}

// Echo asks the bridge to send data back
func (c *Client) Echo(data []byte) ([]byte, error) {
	if len(data) > LineLength-OpcodeLength-1 {
		return nil, fmt.Errorf("echo data too long: %d bytes", len(data))
	}
	params := append([]byte{byte(len(data))}, data...)
	if err := c.Command(OpEcho, params...); err != nil {
		return nil, err
	}
	return c.ReadLine()
}

// Reset restores the bridge defaults
func (c *Client) Reset() error {
	return c.Command(OpReset)
}

// ForwardSensor copies emitted events to the host. Zero keeps it on.
func (c *Client) ForwardSensor(timeout time.Duration) error {
	return c.Command(OpSensorForward, millis(timeout)...)
}

// StopSensor stops sensor forwarding
func (c *Client) StopSensor() error {
	return c.Command(OpSensorStop)
}

// ForwardLink diverts link symbols to the host. Zero keeps it on.
func (c *Client) ForwardLink(timeout time.Duration) error {
	return c.Command(OpLinkForward, millis(timeout)...)
}

// StopLink sends link symbols to the bus again
func (c *Client) StopLink() error {
	return c.Command(OpLinkStop)
}

// ForwardReceive sends received link values to the host. Zero keeps it on.
func (c *Client) ForwardReceive(timeout time.Duration) error {
	return c.Command(OpReceiveForward, millis(timeout)...)
}

// StopReceive keeps received link values local
func (c *Client) StopReceive() error {
	return c.Command(OpReceiveStop)
}

// InjectEvent feeds a synthetic sensor event
func (c *Client) InjectEvent(e dvs.Event) error {
	return c.Command(OpInjectEvent, e.X, e.Y, e.Polarity)
}

// SetResolution changes the downsampling mode
func (c *Client) SetResolution(r dvs.Resolution) error {
	return c.Command(OpSetMode, byte(r))
}

// ParseEventRecord decodes a forwarded sensor record
func ParseEventRecord(line []byte) (dvs.Event, bool) {
	if len(line) < 3 {
		return dvs.Event{}, false
	}
	return dvs.Event{X: line[0], Y: line[1], Polarity: line[2]}, true
}

// ParseValueRecord decodes a forwarded link value
func ParseValueRecord(line []byte) (uint16, bool) {
	if len(line) != 2 {
		return 0, false
	}
	return uint16(line[0])<<8 | uint16(line[1]), true
}

func millis(d time.Duration) []byte {
	ms := d.Milliseconds()
	if ms > 0xFFFF {
		ms = 0xFFFF
	}
	if ms < 0 {
		ms = 0
	}
	return []byte{byte(ms >> 8), byte(ms)}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package console implements the host command protocol.
//
// A command is a four character opcode followed by fixed binary parameters
// and a carriage return. Every command is answered with one status line;
// "id  " and "echo" follow it with a second line.
package console

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/Thermoquad/dvsbridge/pkg/host"
)

// LineLength is the longest accepted command including parameters.
const LineLength = 40

// OpcodeLength is the width of every opcode.
const OpcodeLength = 4

// BoardID is returned by the identify command.
const BoardID = "Interface"

// Opcodes
const (
	OpIdentify       = "id  "
	OpEcho           = "echo"
	OpReset          = "rset"
	OpSensorForward  = "fdvs"
	OpSensorStop     = "rdvs"
	OpInjectEvent    = "udvs"
	OpLinkForward    = "fspn"
	OpLinkStop       = "rspn"
	OpSetMode        = "mspn"
	OpReceiveForward = "frcv"
	OpReceiveStop    = "rrcv"
)

// Responses
const (
	RespSuccess       = "000 Success"
	RespNotRecognised = "001 Not recognised"
	RespWrongLength   = "002 Wrong length"
	RespBadParameter  = "003 Bad parameter"
)

// paramLengths holds the parameter byte count of each fixed size opcode.
var paramLengths = map[string]int{
	OpIdentify:       0,
	OpReset:          0,
	OpSensorForward:  2,
	OpSensorStop:     0,
	OpInjectEvent:    3,
	OpLinkForward:    2,
	OpLinkStop:       0,
	OpSetMode:        1,
	OpReceiveForward: 2,
	OpReceiveStop:    0,
}

// Controller is the set of bridge operations reachable from the console.
type Controller interface {
	EnableSensorForwarding(timeout time.Duration)
	DisableSensorForwarding()
	EnableLinkForwarding(timeout time.Duration)
	DisableLinkForwarding()
	EnableReceiveForwarding(timeout time.Duration)
	DisableReceiveForwarding()
	InjectEvent(e dvs.Event) error
	SetResolution(r dvs.Resolution) error
	Reset() error
}

// Replier sends response lines to the host.
type Replier interface {
	SendString(s string) error
	SendRecord(b ...byte) error
}

// Console parses command lines and dispatches them to a Controller.
type Console struct {
	ctrl  Controller
	reply Replier
	line  []byte
}

// New creates a console
func New(ctrl Controller, reply Replier) *Console {
	return &Console{
		ctrl:  ctrl,
		reply: reply,
		line:  make([]byte, 0, LineLength),
	}
}

// Run feeds bytes from r into the console until r fails
func (c *Console) Run(r io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			c.HandleByte(buf[i])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// HandleByte consumes one byte of host input
func (c *Console) HandleByte(b byte) {
	if b == host.Terminator && !c.inParameters() {
		line := c.line
		c.line = c.line[:0]
		if len(line) > 0 {
			c.execute(line)
		}
		return
	}

	if len(c.line) >= LineLength {
		c.line = c.line[:0]
		return
	}
	c.line = append(c.line, b)
}

// inParameters reports whether a terminator byte would fall inside the
// binary parameters of the opcode being received.
func (c *Console) inParameters() bool {
	if len(c.line) < OpcodeLength {
		return false
	}
	want, ok := required(c.line)
	return ok && len(c.line) < want
}

// required returns the full command length for the opcode in line
func required(line []byte) (int, bool) {
	op := string(line[:OpcodeLength])
	if op == OpEcho {
		if len(line) <= OpcodeLength {
			return OpcodeLength + 1, true
		}
		return OpcodeLength + 1 + int(line[OpcodeLength]), true
	}
	n, ok := paramLengths[op]
	return OpcodeLength + n, ok
}

func (c *Console) execute(line []byte) {
	if len(line) < OpcodeLength {
		c.respond(RespNotRecognised)
		return
	}
	want, ok := required(line)
	if !ok {
		c.respond(RespNotRecognised)
		return
	}
	if len(line) != want {
		c.respond(RespWrongLength)
		return
	}

	params := line[OpcodeLength:]
	switch string(line[:OpcodeLength]) {
	case OpIdentify:
		c.respond(RespSuccess)
		c.respond(BoardID)

	case OpEcho:
		data := append([]byte(nil), params[1:]...)
		c.respond(RespSuccess)
		if err := c.reply.SendRecord(data...); err != nil {
			log.Printf("console: %v", err)
		}

	case OpReset:
		c.result(c.ctrl.Reset())

	case OpSensorForward:
		c.ctrl.EnableSensorForwarding(timeout(params))
		c.respond(RespSuccess)

	case OpSensorStop:
		c.ctrl.DisableSensorForwarding()
		c.respond(RespSuccess)

	case OpInjectEvent:
		e := dvs.Event{X: params[0], Y: params[1], Polarity: params[2]}
		if e.X > dvs.CoordinateMask || e.Y > dvs.CoordinateMask || e.Polarity > 1 {
			c.respond(RespBadParameter)
			return
		}
		c.result(c.ctrl.InjectEvent(e))

	case OpLinkForward:
		c.ctrl.EnableLinkForwarding(timeout(params))
		c.respond(RespSuccess)

	case OpLinkStop:
		c.ctrl.DisableLinkForwarding()
		c.respond(RespSuccess)

	case OpSetMode:
		r := dvs.Resolution(params[0])
		if !r.Valid() {
			c.respond(RespBadParameter)
			return
		}
		c.result(c.ctrl.SetResolution(r))

	case OpReceiveForward:
		c.ctrl.EnableReceiveForwarding(timeout(params))
		c.respond(RespSuccess)

	case OpReceiveStop:
		c.ctrl.DisableReceiveForwarding()
		c.respond(RespSuccess)
	}
}

// timeout decodes a big endian millisecond count
func timeout(params []byte) time.Duration {
	ms := uint16(params[0])<<8 | uint16(params[1])
	return time.Duration(ms) * time.Millisecond
}

func (c *Console) result(err error) {
	if err != nil {
		log.Printf("console: %v", err)
		c.respond(RespBadParameter)
		return
	}
	c.respond(RespSuccess)
}

func (c *Console) respond(s string) {
	if err := c.reply.SendString(s); err != nil {
		log.Printf("console: %v", err)
	}
}

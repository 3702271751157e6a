// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records bridge traffic as a stream of CBOR messages.
//
// Every message is a two element array [kind, body] where body is a map
// with integer keys.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/fxamacker/cbor/v2"
)

// Kind identifies a capture record.
type Kind uint8

// Record kinds
const (
	KindEvent Kind = 1 // decoded sensor event
	KindValue Kind = 2 // value received from the link
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "EVENT"
	case KindValue:
		return "VALUE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// Record is one captured item.
type Record struct {
	Kind  Kind
	Time  time.Time
	Event dvs.Event // KindEvent
	Value uint16    // KindValue
}

type message struct {
	_    struct{} `cbor:",toarray"`
	Kind Kind
	Body body
}

type body struct {
	TimeNS   int64  `cbor:"0,keyasint"`
	X        uint8  `cbor:"1,keyasint,omitempty"`
	Y        uint8  `cbor:"2,keyasint,omitempty"`
	Polarity uint8  `cbor:"3,keyasint,omitempty"`
	Value    uint16 `cbor:"4,keyasint,omitempty"`
}

// Writer appends records to a stream. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	now func() time.Time
}

// NewWriter creates a capture writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: cbor.NewEncoder(w), now: time.Now}
}

// WriteEvent records a sensor event
func (w *Writer) WriteEvent(e dvs.Event) error {
	return w.write(message{
		Kind: KindEvent,
		Body: body{TimeNS: w.now().UnixNano(), X: e.X, Y: e.Y, Polarity: e.Polarity},
	})
}

// WriteValue records a value received from the link
func (w *Writer) WriteValue(v uint16) error {
	return w.write(message{
		Kind: KindValue,
		Body: body{TimeNS: w.now().UnixNano(), Value: v},
	})
}

func (w *Writer) write(m message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(m); err != nil {
		return fmt.Errorf("capture write: %w", err)
	}
	return nil
}

// Reader reads records written by a Writer.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a capture reader
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *Reader) Next() (Record, error) {
	var m message
	if err := r.dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture read: %w", err)
	}

	rec := Record{Kind: m.Kind, Time: time.Unix(0, m.Body.TimeNS)}
	switch m.Kind {
	case KindEvent:
		rec.Event = dvs.Event{X: m.Body.X, Y: m.Body.Y, Polarity: m.Body.Polarity}
	case KindValue:
		rec.Value = m.Body.Value
	default:
		return Record{}, fmt.Errorf("capture read: unknown record kind %d", m.Kind)
	}
	return rec, nil
}

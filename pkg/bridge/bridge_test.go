// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/capture"
	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/Thermoquad/dvsbridge/pkg/host"
	"github.com/Thermoquad/dvsbridge/pkg/spinnlink"
	"github.com/google/go-cmp/cmp"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

type harness struct {
	bridge *Bridge
	out    *syncBuffer
	values chan uint16
	cancel context.CancelFunc
	done   chan struct{}
}

// start builds a bridge on a loopback bus. With connect false nothing
// acknowledges the transmitter.
func start(t *testing.T, opts Options, connect bool) *harness {
	t.Helper()
	h := &harness{out: &syncBuffer{}, values: make(chan uint16, 16), done: make(chan struct{})}
	if opts.ValueSink == nil {
		opts.ValueSink = func(v uint16) { h.values <- v }
	}

	bus := spinnlink.NewLoopback()
	var rx spinnlink.RxLines
	if connect {
		rx = bus
	}
	b, err := New(opts, host.NewChannel(h.out), bus, rx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if connect {
		bus.Connect(b.Receiver(), b.Transmitter())
	}
	h.bridge = b

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.done)
		b.Run(ctx)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func (h *harness) waitForOutput(t *testing.T, n int) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		out := h.out.Bytes()
		if len(out) >= n {
			return out
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d host bytes, have %v", n, out)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) waitForValue(t *testing.T) uint16 {
	t.Helper()
	select {
	case v := <-h.values:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a link value")
		return 0
	}
}

func TestSensorForwardingDownscales(t *testing.T) {
	h := start(t, Options{Resolution: dvs.ResolutionHalf}, false)
	h.bridge.EnableSensorForwarding(0)

	for _, e := range []dvs.Event{{X: 47, Y: 93, Polarity: 1}, {X: 46, Y: 92, Polarity: 1}} {
		if err := h.bridge.InjectEvent(e); err != nil {
			t.Fatal(err)
		}
	}

	got := h.waitForOutput(t, 4)
	if diff := cmp.Diff([]byte{46, 92, 1, '\r'}, got); diff != "" {
		t.Errorf("host record (-want +got):\n%s", diff)
	}
}

func TestSensorBytesAreDecoded(t *testing.T) {
	h := start(t, Options{}, false)
	h.bridge.EnableSensorForwarding(0)

	frame := dvs.EncodeFrame(dvs.Event{X: 10, Y: 30, Polarity: 1})
	for _, c := range append([]byte{0x12}, frame[:]...) {
		if !h.bridge.FeedByte(c) {
			t.Fatal("byte queue full")
		}
	}

	got := h.waitForOutput(t, 4)
	if diff := cmp.Diff([]byte{10, 30, 1, '\r'}, got); diff != "" {
		t.Errorf("host record (-want +got):\n%s", diff)
	}
	s := h.bridge.Stats()
	if s.BytesIn != 3 || s.Events != 1 {
		t.Errorf("BytesIn=%d Events=%d, want 3 and 1", s.BytesIn, s.Events)
	}
}

func TestLinkForwardingSendsSymbols(t *testing.T) {
	h := start(t, Options{Resolution: dvs.ResolutionFull, Address: spinnlink.DefaultAddress}, false)
	h.bridge.EnableLinkForwarding(0)

	if err := h.bridge.InjectEvent(dvs.Event{X: 10, Y: 30, Polarity: 1}); err != nil {
		t.Fatal(err)
	}

	want := []byte{0x11, 0x11, 0x44, 0x11, 0x09, 0x03, 0x11, 0x11, 0x14, 0x11, 0x60, '\r'}
	got := h.waitForOutput(t, len(want))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("forwarded symbols (-want +got):\n%s", diff)
	}
}

func TestLoopbackValueIsLocal(t *testing.T) {
	h := start(t, Options{}, true)

	if err := h.bridge.InjectEvent(dvs.Event{X: 5, Y: 5, Polarity: 1}); err != nil {
		t.Fatal(err)
	}
	if v := h.waitForValue(t); v != 0xC285 {
		t.Errorf("value = %#04x, want 0xC285", v)
	}
	if out := h.out.Bytes(); len(out) != 0 {
		t.Errorf("host received %v without forwarding", out)
	}
}

func TestReceiveForwarding(t *testing.T) {
	h := start(t, Options{}, true)
	h.bridge.EnableReceiveForwarding(0)

	if err := h.bridge.InjectEvent(dvs.Event{X: 5, Y: 5, Polarity: 1}); err != nil {
		t.Fatal(err)
	}
	got := h.waitForOutput(t, 3)
	if diff := cmp.Diff([]byte{0xC2, 0x85, '\r'}, got); diff != "" {
		t.Errorf("forwarded value (-want +got):\n%s", diff)
	}
}

func TestDisableLinkForwardingResumesBus(t *testing.T) {
	h := start(t, Options{}, true)
	h.bridge.EnableLinkForwarding(0)

	if err := h.bridge.InjectEvent(dvs.Event{X: 1, Y: 2, Polarity: 0}); err != nil {
		t.Fatal(err)
	}
	h.waitForOutput(t, spinnlink.PacketLength+1)

	h.bridge.DisableLinkForwarding()
	if err := h.bridge.InjectEvent(dvs.Event{X: 5, Y: 5, Polarity: 1}); err != nil {
		t.Fatal(err)
	}
	if v := h.waitForValue(t); v != 0xC285 {
		t.Errorf("value = %#04x, want 0xC285", v)
	}
}

func TestSetResolutionAndReset(t *testing.T) {
	h := start(t, Options{Resolution: dvs.ResolutionFull}, false)

	if err := h.bridge.SetResolution(dvs.Resolution(4)); !errors.Is(err, dvs.ErrInvalidResolution) {
		t.Fatalf("SetResolution(4) = %v", err)
	}
	if err := h.bridge.SetResolution(dvs.ResolutionEighth); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool { return h.bridge.Resolution() == dvs.ResolutionEighth })

	h.bridge.EnableSensorForwarding(0)
	h.bridge.EnableReceiveForwarding(time.Minute)
	if err := h.bridge.Reset(); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool { return h.bridge.Resolution() == dvs.ResolutionFull })

	s := h.bridge.Stats()
	if s.SensorForwarding || s.LinkForwarding || s.ReceiveForwarding {
		t.Errorf("forwarding still on after reset: %+v", s)
	}
}

func TestOperationsAfterStop(t *testing.T) {
	h := start(t, Options{}, false)
	h.stop()
	if err := h.bridge.InjectEvent(dvs.Event{}); !errors.Is(err, ErrStopped) {
		t.Errorf("InjectEvent after stop = %v, want ErrStopped", err)
	}
}

func TestCaptureRecordsEventsAndValues(t *testing.T) {
	var buf syncBuffer
	h := start(t, Options{Capture: capture.NewWriter(&buf)}, true)

	if err := h.bridge.InjectEvent(dvs.Event{X: 5, Y: 5, Polarity: 1}); err != nil {
		t.Fatal(err)
	}
	h.waitForValue(t)
	h.stop()

	r := capture.NewReader(bytes.NewReader(buf.Bytes()))
	var kinds []capture.Kind
	for {
		rec, err := r.Next()
		if err != nil {
			break
		}
		kinds = append(kinds, rec.Kind)
	}
	if diff := cmp.Diff([]capture.Kind{capture.KindEvent, capture.KindValue}, kinds); diff != "" {
		t.Errorf("capture kinds (-want +got):\n%s", diff)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	bus := spinnlink.NewLoopback()
	ch := host.NewChannel(&bytes.Buffer{})
	if _, err := New(Options{Resolution: dvs.Resolution(7)}, ch, bus, nil); err == nil {
		t.Error("expected error for bad resolution")
	}
	if _, err := New(Options{Address: spinnlink.Address{0, 0, 0, 0x20}}, ch, bus, nil); err == nil {
		t.Error("expected error for bad address")
	}
	if _, err := New(Options{}, nil, bus, nil); err == nil {
		t.Error("expected error without host")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

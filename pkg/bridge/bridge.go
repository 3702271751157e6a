// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge wires the sensor decoder, aggregator and link codec into
// a running bridge.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/dvsbridge/pkg/capture"
	"github.com/Thermoquad/dvsbridge/pkg/dvs"
	"github.com/Thermoquad/dvsbridge/pkg/forward"
	"github.com/Thermoquad/dvsbridge/pkg/spinnlink"
)

// Queue sizes between tasks
const (
	ByteQueueLength = 256
	WorkQueueLength = 256
)

// DefaultDisableWait bounds the gate acquire when link forwarding is turned off.
const DefaultDisableWait = 100 * time.Millisecond

// ErrStopped is returned by operations issued after Run has returned.
var ErrStopped = errors.New("bridge stopped")

// Options configures a Bridge.
type Options struct {
	Resolution         dvs.Resolution
	AggregatorCapacity int
	Address            spinnlink.Address
	QueuePackets       int
	DisableWait        time.Duration

	// Capture receives every event entering the aggregator and every value
	// read from the link. Optional.
	Capture *capture.Writer

	// ValueSink receives link values that are not forwarded to the host.
	// Optional.
	ValueSink func(value uint16)
}

type workKind int

const (
	workEvent workKind = iota
	workMode
)

type workItem struct {
	kind       workKind
	event      dvs.Event
	resolution dvs.Resolution
}

// Bridge owns every queue, flag and task of one sensor to link bridge.
type Bridge struct {
	opts Options
	host spinnlink.Host

	sensorFwd *forward.Forwarder
	linkFwd   *forward.Forwarder
	rxFwd     *forward.Forwarder

	bytes chan byte
	work  chan workItem
	done  chan struct{}
	once  sync.Once

	decoder    *dvs.Decoder       // decoder task only
	aggregator *dvs.Aggregator    // event task only
	encoder    *spinnlink.Encoder // event task only
	queue      *spinnlink.PacketQueue
	tx         *spinnlink.Transmitter
	rx         *spinnlink.Receiver

	resolution atomic.Uint32
	pending    atomic.Int64
	stats      *Statistics
}

// New creates a bridge. rxLines may be nil when there is no inbound link.
func New(opts Options, h spinnlink.Host, txLines spinnlink.TxLines, rxLines spinnlink.RxLines) (*Bridge, error) {
	if h == nil {
		return nil, fmt.Errorf("host channel is required")
	}
	if txLines == nil {
		return nil, fmt.Errorf("transmit lines are required")
	}
	if opts.AggregatorCapacity == 0 {
		opts.AggregatorCapacity = dvs.DefaultAggregatorCapacity
	}
	if opts.QueuePackets == 0 {
		opts.QueuePackets = spinnlink.DefaultQueuePackets
	}
	if opts.DisableWait == 0 {
		opts.DisableWait = DefaultDisableWait
	}

	aggregator, err := dvs.NewAggregator(opts.AggregatorCapacity, opts.Resolution)
	if err != nil {
		return nil, err
	}
	encoder, err := spinnlink.NewEncoder(opts.Resolution, opts.Address)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		opts:       opts,
		host:       h,
		sensorFwd:  forward.New("sensor"),
		linkFwd:    forward.New("link"),
		rxFwd:      forward.New("receive"),
		bytes:      make(chan byte, ByteQueueLength),
		work:       make(chan workItem, WorkQueueLength),
		done:       make(chan struct{}),
		decoder:    dvs.NewDecoder(),
		aggregator: aggregator,
		encoder:    encoder,
		queue:      spinnlink.NewPacketQueue(opts.QueuePackets),
		stats:      NewStatistics(),
	}
	b.resolution.Store(uint32(opts.Resolution))
	b.tx = spinnlink.NewTransmitter(txLines, b.queue, b.linkFwd, h)
	if rxLines != nil {
		b.rx = spinnlink.NewReceiver(rxLines, b.handleValue)
	}
	return b, nil
}

// Transmitter returns the link transmitter, for wiring acknowledge edges
func (b *Bridge) Transmitter() *spinnlink.Transmitter {
	return b.tx
}

// Receiver returns the link receiver, or nil without inbound lines
func (b *Bridge) Receiver() *spinnlink.Receiver {
	return b.rx
}

// Run starts every task and blocks until ctx is cancelled
func (b *Bridge) Run(ctx context.Context) error {
	defer b.once.Do(func() { close(b.done) })

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	tasks := []struct {
		name string
		run  func(context.Context) error
	}{
		{"decoder", b.runDecoder},
		{"events", b.runEvents},
		{"link tx", b.tx.Run},
	}
	if b.rx != nil {
		tasks = append(tasks, struct {
			name string
			run  func(context.Context) error
		}{"link rx", b.rx.Run})
	}

	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("bridge: %s task stopped: %v", task.name, err)
				cancel()
			}
		}()
	}

	log.Printf("bridge: running at %s resolution", dvs.Resolution(b.resolution.Load()))
	wg.Wait()
	return ctx.Err()
}

// FeedByte hands one sensor byte to the decoder without blocking. The byte
// is dropped when the decoder has fallen behind.
func (b *Bridge) FeedByte(c byte) bool {
	select {
	case b.bytes <- c:
		b.stats.BytesIn.Add(1)
		return true
	default:
		b.stats.BytesDropped.Add(1)
		return false
	}
}

// EnableSensorForwarding copies emitted events to the host. A zero timeout
// keeps forwarding on until disabled.
func (b *Bridge) EnableSensorForwarding(timeout time.Duration) {
	b.sensorFwd.Enable(timeout)
	log.Printf("bridge: sensor forwarding on (timeout %v)", timeout)
}

// DisableSensorForwarding stops copying events to the host
func (b *Bridge) DisableSensorForwarding() {
	b.sensorFwd.Disable()
}

// EnableLinkForwarding diverts outgoing symbols from the bus to the host
func (b *Bridge) EnableLinkForwarding(timeout time.Duration) {
	b.linkFwd.Enable(timeout)
	b.tx.Gate().Release()
	log.Printf("bridge: link forwarding on (timeout %v)", timeout)
}

// DisableLinkForwarding sends outgoing symbols to the bus again
func (b *Bridge) DisableLinkForwarding() {
	b.linkFwd.Disable()
	b.tx.Gate().TryAcquire(b.opts.DisableWait)
	b.tx.Prime()
}

// EnableReceiveForwarding sends values read from the link to the host
func (b *Bridge) EnableReceiveForwarding(timeout time.Duration) {
	b.rxFwd.Enable(timeout)
	log.Printf("bridge: receive forwarding on (timeout %v)", timeout)
}

// DisableReceiveForwarding keeps values read from the link local
func (b *Bridge) DisableReceiveForwarding() {
	b.rxFwd.Disable()
}

// InjectEvent queues a synthetic sensor event behind any pending work
func (b *Bridge) InjectEvent(e dvs.Event) error {
	e.X &= dvs.CoordinateMask
	e.Y &= dvs.CoordinateMask
	e.Polarity &= 1
	if err := b.submit(workItem{kind: workEvent, event: e}); err != nil {
		return err
	}
	b.stats.Injected.Add(1)
	return nil
}

// SetResolution changes the downsampling mode. Pending events are discarded.
func (b *Bridge) SetResolution(r dvs.Resolution) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %d", dvs.ErrInvalidResolution, r)
	}
	return b.submit(workItem{kind: workMode, resolution: r})
}

// Resolution returns the active resolution
func (b *Bridge) Resolution() dvs.Resolution {
	return dvs.Resolution(b.resolution.Load())
}

// Reset turns every forwarding mode off and returns to the configured
// resolution.
func (b *Bridge) Reset() error {
	b.DisableSensorForwarding()
	b.DisableLinkForwarding()
	b.DisableReceiveForwarding()
	return b.SetResolution(b.opts.Resolution)
}

// Stats returns a snapshot of the bridge counters
func (b *Bridge) Stats() Snapshot {
	s := Snapshot{
		Uptime:            time.Since(b.stats.StartTime),
		BytesIn:           b.stats.BytesIn.Load(),
		BytesDropped:      b.stats.BytesDropped.Load(),
		Events:            b.stats.Events.Load(),
		Injected:          b.stats.Injected.Load(),
		Resyncs:           b.stats.Resyncs.Load(),
		AggregatorDrops:   b.stats.AggregatorDrops.Load(),
		Emitted:           b.stats.Emitted.Load(),
		HostRecords:       b.stats.HostRecords.Load(),
		PacketsQueued:     b.stats.PacketsQueued.Load(),
		PacketsEvicted:    b.queue.Evicted(),
		SymbolsDriven:     b.tx.SymbolsDriven(),
		SymbolsForwarded:  b.tx.SymbolsForwarded(),
		ValuesForwarded:   b.stats.ValuesForwarded.Load(),
		ValuesLocal:       b.stats.ValuesLocal.Load(),
		Pending:           int(b.pending.Load()),
		Capacity:          b.opts.AggregatorCapacity,
		QueueLen:          b.queue.Len(),
		QueueCap:          b.queue.Cap(),
		Resolution:        b.Resolution(),
		TxState:           b.tx.State(),
		SensorForwarding:  b.sensorFwd.Active(),
		LinkForwarding:    b.linkFwd.Active(),
		ReceiveForwarding: b.rxFwd.Active(),
	}
	if b.rx != nil {
		s.FramesReceived = b.rx.Frames()
		s.FramesDropped = b.rx.Dropped() + b.rx.Overflows()
	}
	s.CalculateRates()
	return s
}

func (b *Bridge) submit(item workItem) error {
	select {
	case <-b.done:
		return ErrStopped
	default:
	}
	select {
	case b.work <- item:
		return nil
	case <-b.done:
		return ErrStopped
	}
}

func (b *Bridge) runDecoder(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-b.bytes:
			event, ok := b.decoder.DecodeByte(c)
			b.stats.Resyncs.Store(b.decoder.Resyncs())
			if !ok {
				continue
			}
			select {
			case b.work <- workItem{kind: workEvent, event: event}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (b *Bridge) runEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-b.work:
			switch item.kind {
			case workEvent:
				b.handleEvent(item.event)
			case workMode:
				b.applyResolution(item.resolution)
			}
		}
	}
}

func (b *Bridge) applyResolution(r dvs.Resolution) {
	if err := b.aggregator.SetResolution(r); err != nil {
		log.Printf("bridge: %v", err)
		return
	}
	if err := b.encoder.SetResolution(r); err != nil {
		log.Printf("bridge: %v", err)
		return
	}
	b.resolution.Store(uint32(r))
	b.pending.Store(0)
	log.Printf("bridge: resolution set to %s", r)
}

func (b *Bridge) handleEvent(e dvs.Event) {
	b.stats.Events.Add(1)
	if b.opts.Capture != nil {
		if err := b.opts.Capture.WriteEvent(e); err != nil {
			log.Printf("bridge: %v", err)
		}
	}

	out, ok := b.aggregator.Update(e)
	b.pending.Store(int64(b.aggregator.Pending()))
	b.stats.AggregatorDrops.Store(b.aggregator.Dropped())
	if !ok {
		return
	}
	b.stats.Emitted.Add(1)

	if b.sensorFwd.Active() {
		if err := b.host.SendRecord(dvs.HostRecord(out)...); err != nil {
			log.Printf("bridge: sensor forward: %v", err)
		} else {
			b.stats.HostRecords.Add(1)
		}
	}

	b.queue.Push(b.encoder.Encode(out))
	b.stats.PacketsQueued.Add(1)
}

func (b *Bridge) handleValue(v uint16) {
	if b.opts.Capture != nil {
		if err := b.opts.Capture.WriteValue(v); err != nil {
			log.Printf("bridge: %v", err)
		}
	}

	if b.rxFwd.Active() {
		if err := b.host.SendRecord(byte(v>>8), byte(v)); err != nil {
			log.Printf("bridge: receive forward: %v", err)
			return
		}
		b.stats.ValuesForwarded.Add(1)
		return
	}

	b.stats.ValuesLocal.Add(1)
	if b.opts.ValueSink != nil {
		b.opts.ValueSink(v)
	}
}

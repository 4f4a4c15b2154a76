package netsim

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocircum/obfsmeter/core/capture"
	"github.com/google/gopacket/layers"
)

// Tap is a capture point on a Wire. It implements capture.Source.
type Tap struct {
	wire    *Wire
	ch      chan capture.Packet
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func newTap(w *Wire, buffer int) *Tap {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Tap{
		wire: w,
		ch:   make(chan capture.Packet, buffer),
		done: make(chan struct{}),
	}
}

// offer queues a frame without blocking the sender.
func (t *Tap) offer(data []byte, lt layers.LinkType, ts time.Time) {
	select {
	case <-t.done:
		return
	default:
	}
	p := capture.Packet{Data: data, Timestamp: ts, Length: len(data), LinkType: lt}
	select {
	case t.ch <- p:
	default:
		t.dropped.Add(1)
	}
}

// ReadPacket returns the next frame. After the tap is closed, queued
// frames are still returned before io.EOF.
func (t *Tap) ReadPacket(ctx context.Context) (capture.Packet, error) {
	select {
	case p := <-t.ch:
		return p, nil
	default:
	}
	select {
	case p := <-t.ch:
		return p, nil
	case <-t.done:
		select {
		case p := <-t.ch:
			return p, nil
		default:
			return capture.Packet{}, io.EOF
		}
	case <-ctx.Done():
		return capture.Packet{}, ctx.Err()
	}
}

// Dropped returns the number of frames lost to a full buffer.
func (t *Tap) Dropped() uint64 {
	return t.dropped.Load()
}

// Close detaches the tap from its wire.
func (t *Tap) Close() error {
	t.wire.detach(t)
	t.shut()
	return nil
}

func (t *Tap) shut() {
	t.once.Do(func() { close(t.done) })
}

// Package netsim is an in-memory network medium. Frames sent on a Wire are
// timestamped and copied to every attached Tap, and simulated hosts answer
// ICMP echo requests addressed to them after a configurable delay.
//
// Time on the wire is virtual: a reply is stamped with the request time
// plus the host's latency and delivered right away, so traces are
// deterministic under a fake clock.
package netsim

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/gocircum/obfsmeter/core/endpoint"
	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/gocircum/obfsmeter/pkg/logging"
	"github.com/gocircum/obfsmeter/pkg/securerandom"
)

// Host is a simulated endpoint attached to the wire.
type Host struct {
	Name string
	IP   netip.Addr
	// MAC may be nil to model a host whose hardware address is unknown.
	MAC net.HardwareAddr
	// Latency is the base round-trip time of echo replies.
	Latency time.Duration
	// Jitter adds a uniform extra delay in [0, Jitter] to each reply.
	Jitter time.Duration
	// LossPercent is the probability, in percent, that a request goes
	// unanswered.
	LossPercent int
	// Silent hosts never answer.
	Silent bool
}

// Wire is the shared medium. It implements transport.Sender.
type Wire struct {
	mu     sync.Mutex
	clk    clock.Clock
	rnd    securerandom.Source
	logger logging.Logger
	hosts  map[netip.Addr]Host
	taps   map[*Tap]struct{}
	sent   int
	closed bool
}

// Option configures a Wire.
type Option func(*Wire)

// WithRandom sets the randomness used for jitter and loss.
func WithRandom(rnd securerandom.Source) Option {
	return func(w *Wire) { w.rnd = rnd }
}

// WithLogger sets the wire logger.
func WithLogger(logger logging.Logger) Option {
	return func(w *Wire) { w.logger = logger }
}

// NewWire returns an empty medium stamping frames with clk.
func NewWire(clk clock.Clock, opts ...Option) *Wire {
	w := &Wire{
		clk:    clk,
		rnd:    securerandom.Crypto(),
		logger: logging.GetLogger(),
		hosts:  make(map[netip.Addr]Host),
		taps:   make(map[*Tap]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "netsim")
	return w
}

// AddHost attaches h, replacing any host with the same IP.
func (w *Wire) AddHost(h Host) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hosts[h.IP] = h
}

// Resolver returns a resolver that knows every attached host by name.
func (w *Wire) Resolver() *endpoint.StaticResolver {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := endpoint.NewStaticResolver()
	for _, h := range w.hosts {
		r.Set(endpoint.Endpoint{Name: h.Name, IP: h.IP, MAC: h.MAC})
	}
	return r
}

// Tap attaches a new capture point with room for buffer frames.
func (w *Wire) Tap(buffer int) *Tap {
	t := newTap(w, buffer)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		t.shut()
		return t
	}
	w.taps[t] = struct{}{}
	return t
}

func (w *Wire) detach(t *Tap) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.taps, t)
}

// Sent returns the number of frames put on the wire, replies included.
func (w *Wire) Sent() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sent
}

// Send puts frame on the wire. The interface name is ignored.
func (w *Wire) Send(ctx context.Context, _ string, frame packet.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if frame.Len() == 0 {
		return fmt.Errorf("empty frame")
	}
	now := w.clk.Now()
	data := append([]byte(nil), frame.Data...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return net.ErrClosed
	}
	w.deliverLocked(data, frame, now)

	info, err := packet.Decode(data, frame.LinkType)
	if err != nil || info.Kind != packet.KindEchoRequest {
		return nil
	}
	host, ok := w.hosts[info.Dst]
	if !ok || host.Silent {
		return nil
	}
	if lost, err := w.lost(host); err != nil || lost {
		return err
	}
	reply, ok := packet.EchoReplyFor(packet.Frame{Data: data, LinkType: frame.LinkType})
	if !ok {
		return nil
	}
	delay := host.Latency
	if host.Jitter > 0 {
		extra, err := w.rnd.DurationRange(0, host.Jitter)
		if err != nil {
			return fmt.Errorf("jitter draw failed: %w", err)
		}
		delay += extra
	}
	if delay <= 0 {
		delay = time.Microsecond
	}
	w.deliverLocked(reply.Data, reply, now.Add(delay))
	return nil
}

func (w *Wire) lost(h Host) (bool, error) {
	if h.LossPercent <= 0 {
		return false, nil
	}
	n, err := w.rnd.IntRange(1, 100)
	if err != nil {
		return false, fmt.Errorf("loss draw failed: %w", err)
	}
	return n <= h.LossPercent, nil
}

func (w *Wire) deliverLocked(data []byte, frame packet.Frame, ts time.Time) {
	w.sent++
	for t := range w.taps {
		t.offer(data, frame.LinkType, ts)
	}
}

// Close detaches every tap, which then report io.EOF once drained.
// Further sends fail.
func (w *Wire) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	for t := range w.taps {
		t.shut()
	}
	w.taps = nil
	return nil
}

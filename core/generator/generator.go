// Package generator produces the measured traffic of a scenario: a short
// train of ICMP echo probes for latency, followed by a stream of UDP
// datagrams carrying transformed payloads for throughput.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/gocircum/obfsmeter/core/analysis"
	"github.com/gocircum/obfsmeter/core/endpoint"
	"github.com/gocircum/obfsmeter/core/obfuscation"
	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/gocircum/obfsmeter/core/scenario"
	"github.com/gocircum/obfsmeter/core/transport"
	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/gocircum/obfsmeter/pkg/logging"
	"github.com/gocircum/obfsmeter/pkg/rusage"
)

// Report summarizes what the generator sent.
type Report struct {
	Scenario    string
	Source      endpoint.Endpoint
	Destination endpoint.Endpoint
	Usage       analysis.SenderUsage
}

// Generator sends the traffic of one scenario at a time. Sending is
// strictly sequential.
type Generator struct {
	cfg      Config
	sender   transport.Sender
	resolver endpoint.Resolver
	clk      clock.Clock
	meter    rusage.Meter
	logger   logging.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the clock used for gaps and deadlines.
func WithClock(clk clock.Clock) Option {
	return func(g *Generator) { g.clk = clk }
}

// WithMeter sets the resource meter used for CPU accounting. The default,
// rusage.Thread, charges only the sending thread.
func WithMeter(m rusage.Meter) Option {
	return func(g *Generator) { g.meter = m }
}

// WithLogger sets the generator logger.
func WithLogger(logger logging.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// New returns a Generator sending through sender.
func New(cfg Config, sender transport.Sender, resolver endpoint.Resolver, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	g := &Generator{
		cfg:      cfg,
		sender:   sender,
		resolver: resolver,
		clk:      clock.System(),
		meter:    rusage.Thread(),
		logger:   logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "generator")
	return g, nil
}

// Run resolves both endpoints and sends the scenario's traffic. An
// unresolvable endpoint aborts the run with an error matching
// endpoint.ErrUnavailable; a failing transform aborts it with the
// wrapped *obfuscation.TransformError.
func (g *Generator) Run(ctx context.Context, sc scenario.Scenario) (Report, error) {
	logger := g.logger.With("scenario", sc.Name())
	rep := Report{Scenario: sc.Name()}

	srcOpts := g.cfg.Await
	if srcOpts.Clock == nil {
		srcOpts.Clock = g.clk
	}
	src, err := endpoint.Await(ctx, g.resolver, g.cfg.SourceName, srcOpts)
	if err != nil {
		return rep, err
	}
	dstOpts := srcOpts
	dstOpts.FallbackMAC = nil
	dst, err := endpoint.Await(ctx, g.resolver, g.cfg.DestinationName, dstOpts)
	if err != nil {
		return rep, err
	}
	rep.Source, rep.Destination = src, dst
	if src.MACFallback {
		logger.Warn("Source MAC unknown, using fallback", "mac", src.MAC.String())
	}

	addr := packet.Addressing{SrcIP: src.IP, DstIP: dst.IP, SrcMAC: src.MAC, DstMAC: dst.MAC}
	if !addr.HasL2() {
		logger.Info("Destination MAC unknown, sending at L3", "dst", dst.IP.String())
	}
	logger.Info("Starting traffic", "src", src.IP.String(), "dst", dst.IP.String(), "transforms", sc.Pipeline().Kinds())

	pipeline := sc.Pipeline()
	if rep.Usage.ProbesSent, err = g.sendProbes(ctx, addr, pipeline); err != nil {
		return rep, fmt.Errorf("scenario '%s' latency phase: %w", sc.Name(), err)
	}
	if err := g.sendStream(ctx, addr, pipeline, &rep.Usage); err != nil {
		return rep, fmt.Errorf("scenario '%s' throughput phase: %w", sc.Name(), err)
	}

	logger.Info("Traffic complete",
		"probes", rep.Usage.ProbesSent,
		"packets", rep.Usage.PacketsSent,
		"bytes", rep.Usage.BytesSent,
		"cpu_percent", rep.Usage.CPUPercent())
	return rep, nil
}

// sendProbes emits the echo requests. Probes are never payload
// transformed, but they are shaped like any other packet.
func (g *Generator) sendProbes(ctx context.Context, addr packet.Addressing, p *obfuscation.Pipeline) (int, error) {
	sent := 0
	for seq := 0; seq < g.cfg.ProbeCount; seq++ {
		frame, err := packet.BuildEcho(addr, packet.KindEchoRequest, g.cfg.ProbeID, uint16(seq), nil)
		if err != nil {
			return sent, err
		}
		if _, err := p.Delay(ctx, frame.Len()); err != nil {
			return sent, err
		}
		if err := g.sender.Send(ctx, g.cfg.Interface, frame); err != nil {
			return sent, fmt.Errorf("probe %d: %w", seq, err)
		}
		sent++
		if err := g.clk.Sleep(ctx, g.cfg.ProbeGap); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

func (g *Generator) sendStream(ctx context.Context, addr packet.Addressing, p *obfuscation.Pipeline, usage *analysis.SenderUsage) error {
	base := bytes.Repeat([]byte("x"), g.cfg.PayloadSize)
	phase := g.cfg.ThroughputPhase()

	// The meter is thread scoped, so the loop must not migrate.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	before, meterErr := g.meter.Sample()
	start := g.clk.Now()
	deadline := start.Add(phase)
	for g.clk.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := p.Apply(base)
		if err != nil {
			return err
		}
		frame, err := packet.BuildUDP(addr, g.cfg.SourcePort, g.cfg.DestPort, payload)
		if err != nil {
			return err
		}
		if _, err := p.Delay(ctx, frame.Len()); err != nil {
			return err
		}
		if err := g.sender.Send(ctx, g.cfg.Interface, frame); err != nil {
			return err
		}
		usage.PacketsSent++
		usage.BytesSent += int64(frame.Len())
	}
	usage.WallTime = g.clk.Now().Sub(start)

	after, err := g.meter.Sample()
	if meterErr != nil || err != nil {
		g.logger.Warn("Resource usage unavailable", "error", errors.Join(meterErr, err))
		return nil
	}
	usage.CPUTime = after.CPUTime - before.CPUTime
	usage.MaxRSSKB = after.MaxRSSKB
	return nil
}

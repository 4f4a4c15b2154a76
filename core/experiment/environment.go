package experiment

import (
	"fmt"
	"maps"
	"net"
	"net/netip"
	"slices"
	"strings"

	"github.com/gocircum/obfsmeter/core/capture"
	"github.com/gocircum/obfsmeter/core/config"
	"github.com/gocircum/obfsmeter/core/endpoint"
	"github.com/gocircum/obfsmeter/core/netsim"
	"github.com/gocircum/obfsmeter/core/obfuscation"
	"github.com/gocircum/obfsmeter/core/scenario"
	"github.com/gocircum/obfsmeter/core/transport"
	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/gocircum/obfsmeter/pkg/logging"
	"github.com/gocircum/obfsmeter/pkg/securerandom"
	"golang.org/x/time/rate"
)

// Addresses given to simulated hosts configured without an IP.
var (
	simulatedSourceIP = netip.MustParseAddr("192.168.124.10")
	simulatedDestIP   = netip.MustParseAddr("192.168.124.11")
)

// Environment is the medium an experiment runs on.
type Environment struct {
	Sender     transport.Sender
	Resolver   endpoint.Resolver
	OpenSource SourceOpener
	// Wire is set for the simulated medium.
	Wire *netsim.Wire
}

// Close releases the sender, and with it the simulated wire.
func (e *Environment) Close() error {
	return e.Sender.Close()
}

// NewEnvironment wires sender, resolver and capture according to cfg.
func NewEnvironment(cfg *config.Config, clk clock.Clock, rnd securerandom.Source, logger logging.Logger) (*Environment, error) {
	var (
		env *Environment
		err error
	)
	switch cfg.Experiment.Medium {
	case config.MediumSimulated:
		env, err = simulatedEnvironment(cfg, clk, rnd, logger)
	default:
		env, err = liveEnvironment(cfg, clk, logger)
	}
	if err != nil {
		return nil, err
	}

	middlewares := []transport.Middleware{transport.LoggingMiddleware(logger)}
	if cfg.Experiment.MaxPacketRate > 0 {
		middlewares = append(middlewares, transport.ThrottlingMiddleware(rate.Limit(cfg.Experiment.MaxPacketRate), cfg.Experiment.MaxBurst))
	}
	env.Sender = transport.Chain(middlewares...)(env.Sender)
	return env, nil
}

func liveEnvironment(cfg *config.Config, clk clock.Clock, logger logging.Logger) (*Environment, error) {
	sender, err := transport.New(&transport.Config{
		Mode:     transport.Mode(cfg.Experiment.Sender),
		PcapPath: cfg.Experiment.PcapOutput,
		Clock:    clk,
	})
	if err != nil {
		return nil, err
	}

	var resolver endpoint.Resolver
	if cfg.Endpoints.Resolver == config.ResolverDNS {
		resolver = &endpoint.DNSResolver{}
	} else {
		eps, err := cfg.StaticEndpoints()
		if err != nil {
			sender.Close()
			return nil, err
		}
		resolver = endpoint.NewStaticResolver(eps...)
	}

	env := &Environment{Sender: sender, Resolver: resolver}
	switch {
	case cfg.Experiment.Sender == string(transport.ModePcap):
		// Dry run: frames go to a file, nothing reaches the interface.
	case cfg.Capture.Source == config.CapturePcap:
		env.OpenSource = func(string) (capture.Source, error) {
			return capture.OpenPcapFile(cfg.Capture.PcapInput)
		}
	default:
		iface, buffer := cfg.Capture.Interface, cfg.Capture.Buffer
		env.OpenSource = func(string) (capture.Source, error) {
			return capture.OpenLive(iface, buffer, logger)
		}
	}
	return env, nil
}

func simulatedEnvironment(cfg *config.Config, clk clock.Clock, rnd securerandom.Source, logger logging.Logger) (*Environment, error) {
	eps, err := cfg.StaticEndpoints()
	if err != nil {
		return nil, err
	}
	src, dst := eps[0], eps[1]
	if !src.IP.IsValid() {
		src.IP = simulatedSourceIP
	}
	if !dst.IP.IsValid() {
		dst.IP = simulatedDestIP
	}
	if cfg.Simulation.KnownMACs {
		if len(src.MAC) == 0 {
			src.MAC = net.HardwareAddr{0x52, 0x54, 0x00, 0x00, 0x00, 0x01}
		}
		if len(dst.MAC) == 0 {
			dst.MAC = net.HardwareAddr{0x52, 0x54, 0x00, 0x00, 0x00, 0x02}
		}
	}

	wire := netsim.NewWire(clk, netsim.WithRandom(rnd), netsim.WithLogger(logger))
	wire.AddHost(netsim.Host{Name: src.Name, IP: src.IP, MAC: src.MAC, Silent: true})
	wire.AddHost(netsim.Host{
		Name:        dst.Name,
		IP:          dst.IP,
		MAC:         dst.MAC,
		Latency:     cfg.Simulation.Latency,
		Jitter:      cfg.Simulation.Jitter,
		LossPercent: cfg.Simulation.LossPercent,
	})

	buffer := cfg.Capture.Buffer
	return &Environment{
		Sender:   wire,
		Resolver: wire.Resolver(),
		OpenSource: func(string) (capture.Source, error) {
			return wire.Tap(buffer), nil
		},
		Wire: wire,
	}, nil
}

// NewCatalogue builds the scenario catalogue from the transform settings
// and custom scenarios of cfg.
func NewCatalogue(cfg *config.Config, clk clock.Clock, rnd securerandom.Source) (*scenario.Catalogue, error) {
	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	pad := cfg.Transforms.Padding
	shaping := cfg.Shaping()

	cat := scenario.NewCatalogue(map[obfuscation.Kind]scenario.Factory{
		obfuscation.KindEncryption: func() (obfuscation.Transform, error) {
			return obfuscation.NewEncryption(key)
		},
		obfuscation.KindPadding: func() (obfuscation.Transform, error) {
			return obfuscation.NewPadding(pad.Min, pad.Max, rnd)
		},
		obfuscation.KindShaping: func() (obfuscation.Transform, error) {
			return obfuscation.NewShaping(shaping, clk, rnd)
		},
	})

	for _, name := range slices.Sorted(maps.Keys(cfg.CustomScenarios)) {
		kinds := make([]obfuscation.Kind, 0, len(cfg.CustomScenarios[name]))
		for _, k := range cfg.CustomScenarios[name] {
			kinds = append(kinds, obfuscation.Kind(strings.ToLower(k)))
		}
		if err := cat.Define(name, kinds...); err != nil {
			return nil, fmt.Errorf("custom scenario: %w", err)
		}
	}
	return cat, nil
}

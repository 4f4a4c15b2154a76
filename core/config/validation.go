package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

var validSenders = map[string]bool{"system": true, "pcap": true}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Experiment.Duration <= 0 {
		return fmt.Errorf("experiment.duration must be positive, got %s", c.Experiment.Duration)
	}
	if c.Experiment.StartupDelay < 0 {
		return fmt.Errorf("experiment.startup_delay must not be negative")
	}
	switch c.Experiment.Medium {
	case MediumLive, MediumSimulated:
	default:
		return fmt.Errorf("experiment.medium must be '%s' or '%s', got '%s'", MediumLive, MediumSimulated, c.Experiment.Medium)
	}
	if !validSenders[c.Experiment.Sender] {
		return fmt.Errorf("experiment.sender must be 'system' or 'pcap', got '%s'", c.Experiment.Sender)
	}
	if c.Experiment.Sender == "pcap" && c.Experiment.PcapOutput == "" {
		return fmt.Errorf("experiment.pcap_output is required with the pcap sender")
	}
	if c.Experiment.MaxPacketRate < 0 {
		return fmt.Errorf("experiment.max_packet_rate must not be negative")
	}

	if err := c.Endpoints.validate(); err != nil {
		return err
	}
	if err := c.Generator.validate(); err != nil {
		return err
	}
	if err := c.Transforms.validate(); err != nil {
		return err
	}
	if err := c.validateScenarios(); err != nil {
		return err
	}

	switch c.Capture.Source {
	case CaptureLive:
		if c.Experiment.Medium == MediumLive && c.Capture.Interface == "" {
			return fmt.Errorf("capture.interface (or generator.interface) is required for live capture")
		}
	case CapturePcap:
		if c.Capture.PcapInput == "" {
			return fmt.Errorf("capture.pcap_input is required with the pcap capture source")
		}
	default:
		return fmt.Errorf("capture.source must be '%s' or '%s', got '%s'", CaptureLive, CapturePcap, c.Capture.Source)
	}
	if c.Capture.Buffer < 0 {
		return fmt.Errorf("capture.buffer must not be negative")
	}

	if c.Simulation.Latency < 0 || c.Simulation.Jitter < 0 {
		return fmt.Errorf("simulation latency and jitter must not be negative")
	}
	if c.Simulation.LossPercent < 0 || c.Simulation.LossPercent > 100 {
		return fmt.Errorf("simulation.loss_percent must be within 0..100, got %d", c.Simulation.LossPercent)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got '%s'", c.Logging.Format)
	}
	return nil
}

func (e EndpointsConfig) validate() error {
	for role, ep := range map[string]Endpoint{"source": e.Source, "destination": e.Destination} {
		if ep.Name == "" {
			return fmt.Errorf("endpoints.%s.name is required", role)
		}
		if ep.IP != "" {
			addr, err := netip.ParseAddr(ep.IP)
			if err != nil || !addr.Is4() {
				return fmt.Errorf("endpoints.%s.ip '%s' is not an IPv4 address", role, ep.IP)
			}
		}
		if ep.MAC != "" {
			if _, err := net.ParseMAC(ep.MAC); err != nil {
				return fmt.Errorf("endpoints.%s.mac: %w", role, err)
			}
		}
	}
	if e.Source.Name == e.Destination.Name {
		return fmt.Errorf("source and destination endpoints must differ")
	}
	switch e.Resolver {
	case ResolverStatic, ResolverDNS:
	default:
		return fmt.Errorf("endpoints.resolver must be '%s' or '%s', got '%s'", ResolverStatic, ResolverDNS, e.Resolver)
	}
	if e.AwaitTimeout <= 0 || e.AwaitInterval <= 0 {
		return fmt.Errorf("endpoints await_timeout and await_interval must be positive")
	}
	if e.FallbackMAC != "" {
		if _, err := net.ParseMAC(e.FallbackMAC); err != nil {
			return fmt.Errorf("endpoints.fallback_mac: %w", err)
		}
	}
	return nil
}

func (g GeneratorConfig) validate() error {
	if g.ProbeCount < 0 {
		return fmt.Errorf("generator.probe_count must not be negative")
	}
	if g.ProbeGap < 0 {
		return fmt.Errorf("generator.probe_gap must not be negative")
	}
	if g.PayloadSize < 0 || g.PayloadSize > 65000 {
		return fmt.Errorf("generator.payload_size must be within 0..65000, got %d", g.PayloadSize)
	}
	if g.Reserve < 0 {
		return fmt.Errorf("generator.reserve must not be negative")
	}
	if g.MinThroughputPhase <= 0 {
		return fmt.Errorf("generator.min_throughput_phase must be positive")
	}
	return nil
}

func (t TransformsConfig) validate() error {
	enc := t.Encryption
	if enc.KeyHex != "" && enc.Passphrase != "" {
		return fmt.Errorf("transforms.encryption: key_hex and passphrase are mutually exclusive")
	}
	if enc.KeyHex != "" {
		key, err := hex.DecodeString(enc.KeyHex)
		if err != nil {
			return fmt.Errorf("transforms.encryption.key_hex: %w", err)
		}
		if !validKeySize(len(key)) {
			return fmt.Errorf("transforms.encryption.key_hex must decode to 16, 24 or 32 bytes, got %d", len(key))
		}
	}
	if enc.Passphrase != "" && !validKeySize(enc.KeySize) {
		return fmt.Errorf("transforms.encryption.key_size must be 16, 24 or 32, got %d", enc.KeySize)
	}
	if t.Padding.Min < 0 || t.Padding.Max < t.Padding.Min {
		return fmt.Errorf("transforms.padding needs 0 <= min <= max, got %d..%d", t.Padding.Min, t.Padding.Max)
	}
	if t.Shaping.MinDelay < 0 || t.Shaping.MaxDelay < 0 || t.Shaping.RateBps < 0 {
		return fmt.Errorf("transforms.shaping delays and rate must not be negative")
	}
	if t.Shaping.Mode == "random" && t.Shaping.MaxDelay < t.Shaping.MinDelay {
		return fmt.Errorf("transforms.shaping.max_delay must be >= min_delay")
	}
	return nil
}

func validKeySize(n int) bool {
	return n == 16 || n == 24 || n == 32
}

var transformKinds = map[string]bool{"encryption": true, "padding": true, "shaping": true}

func (c *Config) validateScenarios() error {
	for name, kinds := range c.CustomScenarios {
		if name == "" || strings.ToLower(name) == "all" {
			return fmt.Errorf("custom scenario name '%s' is reserved", name)
		}
		if len(kinds) == 0 {
			return fmt.Errorf("custom scenario '%s' has no transforms", name)
		}
		seen := make(map[string]bool, len(kinds))
		for _, k := range kinds {
			k = strings.ToLower(k)
			if !transformKinds[k] {
				return fmt.Errorf("custom scenario '%s' uses unknown transform '%s'", name, k)
			}
			if seen[k] {
				return fmt.Errorf("custom scenario '%s' lists transform '%s' twice", name, k)
			}
			seen[k] = true
		}
	}
	for _, s := range c.Scenarios {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("scenarios must not contain empty names")
		}
	}
	return nil
}

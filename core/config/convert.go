package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/gocircum/obfsmeter/core/endpoint"
	"github.com/gocircum/obfsmeter/core/generator"
	"github.com/gocircum/obfsmeter/core/obfuscation"
)

// GeneratorSettings converts the generator and endpoint sections.
func (c *Config) GeneratorSettings() (generator.Config, error) {
	fallback, err := c.FallbackMAC()
	if err != nil {
		return generator.Config{}, err
	}
	return generator.Config{
		Interface:       c.Generator.Interface,
		SourceName:      c.Endpoints.Source.Name,
		DestinationName: c.Endpoints.Destination.Name,
		Await: endpoint.AwaitOptions{
			Timeout:     c.Endpoints.AwaitTimeout,
			Interval:    c.Endpoints.AwaitInterval,
			FallbackMAC: fallback,
		},
		ProbeCount:         c.Generator.ProbeCount,
		ProbeGap:           c.Generator.ProbeGap,
		ProbeID:            c.Generator.ProbeID,
		PayloadSize:        c.Generator.PayloadSize,
		SourcePort:         c.Generator.SourcePort,
		DestPort:           c.Generator.DestPort,
		Duration:           c.Experiment.Duration,
		Reserve:            c.Generator.Reserve,
		MinThroughputPhase: c.Generator.MinThroughputPhase,
	}, nil
}

// FallbackMAC parses endpoints.fallback_mac. An empty value disables the
// fallback.
func (c *Config) FallbackMAC() (net.HardwareAddr, error) {
	if c.Endpoints.FallbackMAC == "" {
		return nil, nil
	}
	mac, err := net.ParseMAC(c.Endpoints.FallbackMAC)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback MAC: %w", err)
	}
	return mac, nil
}

// StaticEndpoints returns the endpoints as configured. Endpoints without
// an IP resolve as not ready.
func (c *Config) StaticEndpoints() ([]endpoint.Endpoint, error) {
	out := make([]endpoint.Endpoint, 0, 2)
	for _, ep := range []Endpoint{c.Endpoints.Source, c.Endpoints.Destination} {
		e := endpoint.Endpoint{Name: ep.Name}
		if ep.IP != "" {
			addr, err := netip.ParseAddr(ep.IP)
			if err != nil {
				return nil, fmt.Errorf("endpoint '%s': %w", ep.Name, err)
			}
			e.IP = addr
		}
		if ep.MAC != "" {
			mac, err := net.ParseMAC(ep.MAC)
			if err != nil {
				return nil, fmt.Errorf("endpoint '%s': %w", ep.Name, err)
			}
			e.MAC = mac
		}
		out = append(out, e)
	}
	return out, nil
}

// EncryptionKey returns the payload key: the hex key, a key derived from
// the passphrase, or nil for the default key.
func (c *Config) EncryptionKey() ([]byte, error) {
	enc := c.Transforms.Encryption
	switch {
	case enc.KeyHex != "":
		key, err := hex.DecodeString(enc.KeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		return key, nil
	case enc.Passphrase != "":
		return obfuscation.DeriveKey(enc.Passphrase, []byte(enc.Salt), enc.KeySize)
	default:
		return nil, nil
	}
}

// Shaping converts the shaping section.
func (c *Config) Shaping() obfuscation.ShapingConfig {
	s := c.Transforms.Shaping
	return obfuscation.ShapingConfig{
		Mode:     obfuscation.ShapingMode(strings.ToLower(s.Mode)),
		MinDelay: s.MinDelay,
		MaxDelay: s.MaxDelay,
		RateBps:  s.RateBps,
	}
}

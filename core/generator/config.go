package generator

import (
	"fmt"
	"time"

	"github.com/gocircum/obfsmeter/core/endpoint"
)

// Config controls the traffic produced for one scenario.
type Config struct {
	// Interface is the network interface frames are sent on.
	Interface string
	// SourceName and DestinationName identify the endpoints to resolve.
	SourceName      string
	DestinationName string
	// Await bounds endpoint resolution. Its FallbackMAC only applies to
	// the source; an unknown destination MAC switches to L3 frames.
	Await endpoint.AwaitOptions

	ProbeCount int
	ProbeGap   time.Duration
	ProbeID    uint16

	PayloadSize int
	SourcePort  uint16
	DestPort    uint16

	// Duration is the capture window the traffic must fit in. The
	// throughput phase lasts Duration-Reserve, and never less than
	// MinThroughputPhase.
	Duration           time.Duration
	Reserve            time.Duration
	MinThroughputPhase time.Duration
}

// DefaultConfig returns the settings of a standard ten second run.
func DefaultConfig() Config {
	return Config{
		SourceName:      "source",
		DestinationName: "destination",
		Await: endpoint.AwaitOptions{
			Timeout:  15 * time.Second,
			Interval: time.Second,
		},
		ProbeCount:         5,
		ProbeGap:           200 * time.Millisecond,
		ProbeID:            0x1234,
		PayloadSize:        500,
		SourcePort:         5005,
		DestPort:           5005,
		Duration:           10 * time.Second,
		Reserve:            2 * time.Second,
		MinThroughputPhase: time.Second,
	}
}

// ThroughputPhase returns how long the bulk send loop runs.
func (c Config) ThroughputPhase() time.Duration {
	d := c.Duration - c.Reserve
	if d < c.MinThroughputPhase {
		return c.MinThroughputPhase
	}
	return d
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	if c.SourceName == "" || c.DestinationName == "" {
		return fmt.Errorf("source and destination names are required")
	}
	if c.ProbeCount < 0 {
		return fmt.Errorf("probe count must not be negative, got %d", c.ProbeCount)
	}
	if c.ProbeGap < 0 {
		return fmt.Errorf("probe gap must not be negative, got %s", c.ProbeGap)
	}
	if c.PayloadSize < 0 {
		return fmt.Errorf("payload size must not be negative, got %d", c.PayloadSize)
	}
	if c.MinThroughputPhase <= 0 {
		return fmt.Errorf("minimum throughput phase must be positive, got %s", c.MinThroughputPhase)
	}
	return nil
}

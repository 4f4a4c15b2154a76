package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file, applies defaults and
// validates the result.
func LoadConfig(filePath string) (*Config, error) {
	cfg, err := ReadConfig(filePath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ReadConfig reads and defaults a configuration file without validating
// it. Callers overriding fields should call ApplyDefaults and Validate
// afterwards.
func ReadConfig(filePath string) (*Config, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
	}
	return Decode(buf)
}

// Parse decodes, defaults and validates a configuration document.
func Parse(buf []byte) (*Config, error) {
	cfg, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Decode decodes and defaults a configuration document.
func Decode(buf []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Default returns the configuration used when a field is not set.
func Default() *Config {
	return &Config{
		Experiment: ExperimentConfig{
			Duration:     10 * time.Second,
			StartupDelay: time.Second,
			ResultsDir:   ".",
			Medium:       MediumLive,
			Sender:       "system",
		},
		Endpoints: EndpointsConfig{
			Source:        Endpoint{Name: "source"},
			Destination:   Endpoint{Name: "destination"},
			Resolver:      ResolverStatic,
			AwaitTimeout:  15 * time.Second,
			AwaitInterval: time.Second,
			FallbackMAC:   DefaultFallbackMAC,
		},
		Generator: GeneratorConfig{
			ProbeCount:         5,
			ProbeGap:           200 * time.Millisecond,
			ProbeID:            0x1234,
			PayloadSize:        500,
			SourcePort:         5005,
			DestPort:           5005,
			Reserve:            2 * time.Second,
			MinThroughputPhase: time.Second,
		},
		Transforms: TransformsConfig{
			Encryption: EncryptionConfig{KeySize: 16},
			Padding:    PaddingConfig{Min: 0, Max: 50},
			Shaping: ShapingConfig{
				Mode:     "random",
				MinDelay: 10 * time.Millisecond,
				MaxDelay: 100 * time.Millisecond,
			},
		},
		Scenarios: []string{"all"},
		Capture: CaptureConfig{
			Source: CaptureLive,
			Buffer: 4096,
		},
		Simulation: SimulationConfig{
			Latency: time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ApplyDefaults fills values that depend on other fields. It is safe to
// call again after overriding fields.
func (c *Config) ApplyDefaults() {
	if c.Capture.Interface == "" {
		c.Capture.Interface = c.Generator.Interface
	}
	if len(c.Scenarios) == 0 {
		c.Scenarios = []string{"all"}
	}
	if c.Experiment.Medium == MediumSimulated && c.Experiment.MaxPacketRate == 0 {
		c.Experiment.MaxPacketRate = DefaultSimulatedPacketRate
	}
	if c.Experiment.MaxPacketRate > 0 && c.Experiment.MaxBurst <= 0 {
		c.Experiment.MaxBurst = 1
	}
}

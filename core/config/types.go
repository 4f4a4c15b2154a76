package config

import "time"

// Medium values for ExperimentConfig.Medium.
const (
	// MediumLive sends and captures on a real interface.
	MediumLive = "live"
	// MediumSimulated runs against the in-memory network.
	MediumSimulated = "simulated"
)

// Capture source values for CaptureConfig.Source.
const (
	CaptureLive = "live"
	CapturePcap = "pcap"
)

// Resolver values for EndpointsConfig.Resolver.
const (
	ResolverStatic = "static"
	ResolverDNS    = "dns"
)

// DefaultFallbackMAC is used for the source endpoint when its hardware
// address cannot be resolved.
const DefaultFallbackMAC = "52:54:00:aa:bb:cc"

// DefaultSimulatedPacketRate caps the send rate on the in-memory network,
// in frames per second, unless experiment.max_packet_rate is set.
const DefaultSimulatedPacketRate = 2000

// Config is the top-level experiment configuration file.
type Config struct {
	Experiment      ExperimentConfig    `yaml:"experiment"`
	Endpoints       EndpointsConfig     `yaml:"endpoints"`
	Generator       GeneratorConfig     `yaml:"generator"`
	Transforms      TransformsConfig    `yaml:"transforms"`
	Scenarios       []string            `yaml:"scenarios"`
	CustomScenarios map[string][]string `yaml:"custom_scenarios,omitempty"`
	Capture         CaptureConfig       `yaml:"capture"`
	Simulation      SimulationConfig    `yaml:"simulation"`
	Logging         LoggingConfig       `yaml:"logging"`
}

// ExperimentConfig holds run-wide settings.
type ExperimentConfig struct {
	// Duration is the capture window of each scenario.
	Duration     time.Duration `yaml:"duration"`
	StartupDelay time.Duration `yaml:"startup_delay"`
	ResultsDir   string        `yaml:"results_dir"`
	Medium       string        `yaml:"medium"`
	// Sender is "system" or "pcap".
	Sender     string `yaml:"sender"`
	PcapOutput string `yaml:"pcap_output,omitempty"`
	// MaxPacketRate caps frames per second on the send path. Zero
	// disables the cap.
	MaxPacketRate float64 `yaml:"max_packet_rate,omitempty"`
	MaxBurst      int     `yaml:"max_burst,omitempty"`
}

// Endpoint describes one host. IP and MAC may be empty when the resolver
// discovers them.
type Endpoint struct {
	Name string `yaml:"name"`
	IP   string `yaml:"ip,omitempty"`
	MAC  string `yaml:"mac,omitempty"`
}

// EndpointsConfig describes the measured flow.
type EndpointsConfig struct {
	Source        Endpoint      `yaml:"source"`
	Destination   Endpoint      `yaml:"destination"`
	Resolver      string        `yaml:"resolver"`
	AwaitTimeout  time.Duration `yaml:"await_timeout"`
	AwaitInterval time.Duration `yaml:"await_interval"`
	FallbackMAC   string        `yaml:"fallback_mac"`
}

// GeneratorConfig tunes the traffic generator.
type GeneratorConfig struct {
	Interface          string        `yaml:"interface"`
	ProbeCount         int           `yaml:"probe_count"`
	ProbeGap           time.Duration `yaml:"probe_gap"`
	ProbeID            uint16        `yaml:"probe_id"`
	PayloadSize        int           `yaml:"payload_size"`
	SourcePort         uint16        `yaml:"source_port"`
	DestPort           uint16        `yaml:"dest_port"`
	Reserve            time.Duration `yaml:"reserve"`
	MinThroughputPhase time.Duration `yaml:"min_throughput_phase"`
}

// TransformsConfig parameterizes each transform kind.
type TransformsConfig struct {
	Encryption EncryptionConfig `yaml:"encryption"`
	Padding    PaddingConfig    `yaml:"padding"`
	Shaping    ShapingConfig    `yaml:"shaping"`
}

// EncryptionConfig selects the payload key. With neither KeyHex nor
// Passphrase set, the fixed default key is used.
type EncryptionConfig struct {
	KeyHex     string `yaml:"key_hex,omitempty"`
	Passphrase string `yaml:"passphrase,omitempty"`
	Salt       string `yaml:"salt,omitempty"`
	KeySize    int    `yaml:"key_size,omitempty"`
}

// PaddingConfig bounds the random pad length in bytes.
type PaddingConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// ShapingConfig configures send timing.
type ShapingConfig struct {
	Mode     string        `yaml:"mode"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	RateBps  float64       `yaml:"rate_bps,omitempty"`
}

// CaptureConfig selects where observations come from.
type CaptureConfig struct {
	Source    string `yaml:"source"`
	Interface string `yaml:"interface,omitempty"`
	PcapInput string `yaml:"pcap_input,omitempty"`
	Buffer    int    `yaml:"buffer"`
}

// SimulationConfig describes the destination host of the in-memory
// network.
type SimulationConfig struct {
	Latency     time.Duration `yaml:"latency"`
	Jitter      time.Duration `yaml:"jitter"`
	LossPercent int           `yaml:"loss_percent"`
	// KnownMACs gives both simulated hosts a hardware address.
	KnownMACs bool `yaml:"known_macs"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

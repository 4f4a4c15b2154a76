package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gocircum/obfsmeter/core/obfuscation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
experiment:
  duration: 8s
  results_dir: out
endpoints:
  source:
    name: vm-source
    ip: 192.168.124.10
  destination:
    name: vm-dest
    ip: 192.168.124.11
    mac: "52:54:00:12:34:56"
generator:
  interface: expnetbr
  probe_id: 0x4242
transforms:
  padding:
    min: 10
    max: 20
  shaping:
    mode: constant
    rate_bps: 1000000
scenarios: [encryption, padded-encrypted]
custom_scenarios:
  padded-encrypted: [padding, encryption]
logging:
  level: debug
  format: json
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 8*time.Second, cfg.Experiment.Duration)
	assert.Equal(t, time.Second, cfg.Experiment.StartupDelay)
	assert.Equal(t, "out", cfg.Experiment.ResultsDir)
	assert.Equal(t, "expnetbr", cfg.Capture.Interface)
	assert.Equal(t, uint16(0x4242), cfg.Generator.ProbeID)
	assert.Equal(t, 5, cfg.Generator.ProbeCount)
	assert.Equal(t, 500, cfg.Generator.PayloadSize)
	assert.Equal(t, DefaultFallbackMAC, cfg.Endpoints.FallbackMAC)
	assert.Equal(t, []string{"encryption", "padded-encrypted"}, cfg.Scenarios)
	assert.Equal(t, []string{"padding", "encryption"}, cfg.CustomScenarios["padded-encrypted"])
	assert.Equal(t, "json", cfg.Logging.Format)

	sh := cfg.Shaping()
	assert.Equal(t, obfuscation.ShapingConstant, sh.Mode)
	assert.Equal(t, 1e6, sh.RateBps)
	assert.Equal(t, 10*time.Millisecond, sh.MinDelay)
}

func TestGeneratorSettings(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	g, err := cfg.GeneratorSettings()
	require.NoError(t, err)
	assert.Equal(t, "vm-source", g.SourceName)
	assert.Equal(t, "vm-dest", g.DestinationName)
	assert.Equal(t, 8*time.Second, g.Duration)
	assert.Equal(t, 6*time.Second, g.ThroughputPhase())
	assert.Equal(t, net.HardwareAddr{0x52, 0x54, 0x00, 0xaa, 0xbb, 0xcc}, g.Await.FallbackMAC)

	eps, err := cfg.StaticEndpoints()
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Empty(t, eps[0].MAC)
	assert.Equal(t, net.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}, eps[1].MAC)
}

func TestEncryptionKey(t *testing.T) {
	cfg := Default()
	key, err := cfg.EncryptionKey()
	require.NoError(t, err)
	assert.Nil(t, key)

	cfg.Transforms.Encryption.KeyHex = "000102030405060708090a0b0c0d0e0f"
	key, err = cfg.EncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, 16)

	cfg = Default()
	cfg.Transforms.Encryption.Passphrase = "lab run"
	cfg.Transforms.Encryption.KeySize = 32
	key, err = cfg.EncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"defaults need an interface", func(c *Config) {}, "capture.interface"},
		{"simulated needs no interface", func(c *Config) { c.Experiment.Medium = MediumSimulated }, ""},
		{"bad duration", func(c *Config) { c.Experiment.Duration = 0 }, "experiment.duration"},
		{"bad medium", func(c *Config) { c.Experiment.Medium = "carrier" }, "experiment.medium"},
		{"pcap sender needs output", func(c *Config) { c.Experiment.Sender = "pcap" }, "pcap_output"},
		{"bad fallback mac", func(c *Config) { c.Endpoints.FallbackMAC = "nope" }, "fallback_mac"},
		{"bad endpoint ip", func(c *Config) { c.Endpoints.Source.IP = "::1" }, "not an IPv4"},
		{"same endpoints", func(c *Config) { c.Endpoints.Destination.Name = "source" }, "must differ"},
		{"bad padding", func(c *Config) { c.Transforms.Padding.Max = -1 }, "transforms.padding"},
		{"bad shaping", func(c *Config) { c.Transforms.Shaping.MaxDelay = time.Millisecond }, "max_delay"},
		{"bad key", func(c *Config) { c.Transforms.Encryption.KeyHex = "0011" }, "16, 24 or 32"},
		{"key and passphrase", func(c *Config) {
			c.Transforms.Encryption.KeyHex = "000102030405060708090a0b0c0d0e0f"
			c.Transforms.Encryption.Passphrase = "x"
		}, "mutually exclusive"},
		{"unknown custom transform", func(c *Config) {
			c.CustomScenarios = map[string][]string{"weird": {"compression"}}
		}, "unknown transform"},
		{"duplicate custom transform", func(c *Config) {
			c.CustomScenarios = map[string][]string{"double": {"padding", "padding"}}
		}, "twice"},
		{"pcap capture needs input", func(c *Config) {
			c.Experiment.Medium = MediumSimulated
			c.Capture.Source = CapturePcap
		}, "pcap_input"},
		{"loss out of range", func(c *Config) {
			c.Experiment.Medium = MediumSimulated
			c.Simulation.LossPercent = 101
		}, "loss_percent"},
		{"bad log format", func(c *Config) {
			c.Experiment.Medium = MediumSimulated
			c.Logging.Format = "xml"
		}, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "vm-dest", cfg.Endpoints.Destination.Name)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("experiment: [not, a, map]"))
	assert.Error(t, err)
}

func TestReadConfigDefersValidation(t *testing.T) {
	const noInterface = `
endpoints:
  source:
    name: vm-source
    ip: 192.168.124.10
  destination:
    name: vm-dest
    ip: 192.168.124.11
`
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(noInterface), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture.interface")

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	cfg.Experiment.Medium = MediumSimulated
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float64(DefaultSimulatedPacketRate), cfg.Experiment.MaxPacketRate)
	assert.Equal(t, 1, cfg.Experiment.MaxBurst)
}

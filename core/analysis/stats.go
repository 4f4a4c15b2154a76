package analysis

import (
	"math"
	"time"
)

// StatsRecord is the reduced form of one scenario's capture, optionally
// merged with the sender's own accounting.
type StatsRecord struct {
	Scenario           string    `json:"scenario"`
	PacketCount        int       `json:"packet_count"`
	TotalBytes         int64     `json:"total_bytes"`
	CaptureDurationSec float64   `json:"capture_duration_sec"`
	ThroughputBps      int64     `json:"throughput_bps"`
	PacketSizes        []int     `json:"packet_sizes"`
	LatencySamples     []float64 `json:"latency_samples"`
	AvgLatencyMs       *float64  `json:"avg_latency_ms"`
	JitterMs           *float64  `json:"jitter_ms"`
	UnmatchedProbes    int       `json:"unmatched_probes"`
	DroppedPackets     uint64    `json:"dropped_packets"`

	ProbesSent      int     `json:"probes_sent"`
	PacketsSent     int     `json:"packets_sent"`
	BytesSent       int64   `json:"bytes_sent"`
	CPUTimeSec      float64 `json:"cpu_time_sec"`
	CPUUsagePercent float64 `json:"cpu_usage_percent"`
	MaxRSSKB        int64   `json:"max_rss_kb"`
}

// SenderUsage is what the traffic generator measured about itself.
type SenderUsage struct {
	ProbesSent  int
	PacketsSent int
	BytesSent   int64
	// CPUTime is process CPU time spent in the throughput phase.
	CPUTime time.Duration
	// WallTime is the length of the throughput phase.
	WallTime time.Duration
	MaxRSSKB int64
}

// CPUPercent returns CPU time over wall time, in percent. A zero wall
// time yields 0.
func (u SenderUsage) CPUPercent() float64 {
	if u.WallTime <= 0 {
		return 0
	}
	return u.CPUTime.Seconds() / u.WallTime.Seconds() * 100
}

// Merge returns a copy of r with the sender-side fields filled from u.
func (r StatsRecord) Merge(u SenderUsage) StatsRecord {
	out := r
	out.PacketSizes = append([]int(nil), r.PacketSizes...)
	out.LatencySamples = append([]float64(nil), r.LatencySamples...)
	out.ProbesSent = u.ProbesSent
	out.PacketsSent = u.PacketsSent
	out.BytesSent = u.BytesSent
	out.CPUTimeSec = u.CPUTime.Seconds()
	out.CPUUsagePercent = u.CPUPercent()
	out.MaxRSSKB = u.MaxRSSKB
	return out
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev uses the n-1 divisor.
func sampleStdDev(xs []float64, m float64) float64 {
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}

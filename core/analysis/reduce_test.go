package analysis

import (
	"encoding/json"
	"net/netip"
	"testing"
	"time"

	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srcIP  = netip.MustParseAddr("192.168.124.10")
	dstIP  = netip.MustParseAddr("192.168.124.11")
	probe  = uint16(0x1234)
	second = time.Second
)

func request(at time.Duration, seq uint16) Observation {
	return Observation{Timestamp: t0.Add(at), Length: 42, Src: srcIP, Dst: dstIP, Kind: packet.KindEchoRequest, ID: probe, Seq: seq}
}

func reply(at time.Duration, seq uint16) Observation {
	return Observation{Timestamp: t0.Add(at), Length: 42, Src: dstIP, Dst: srcIP, Kind: packet.KindEchoReply, ID: probe, Seq: seq}
}

func udp(at time.Duration, size int) Observation {
	return Observation{Timestamp: t0.Add(at), Length: size, Src: srcIP, Dst: dstIP, Kind: packet.KindUDP}
}

func TestReduceThroughputExample(t *testing.T) {
	rec := Reduce("baseline", []Observation{udp(0, 100), udp(second, 100)})

	assert.Equal(t, 2, rec.PacketCount)
	assert.Equal(t, int64(200), rec.TotalBytes)
	assert.Equal(t, 1.0, rec.CaptureDurationSec)
	assert.Equal(t, int64(1600), rec.ThroughputBps)
	assert.Equal(t, []int{100, 100}, rec.PacketSizes)
	assert.Nil(t, rec.AvgLatencyMs)
	assert.Nil(t, rec.JitterMs)
}

func TestReduceZeroDuration(t *testing.T) {
	tests := []struct {
		name string
		obs  []Observation
	}{
		{"empty", nil},
		{"single packet", []Observation{udp(0, 500)}},
		{"same timestamp", []Observation{udp(0, 500), udp(0, 500)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Reduce("baseline", tt.obs)
			assert.Zero(t, rec.ThroughputBps)
			assert.Zero(t, rec.CaptureDurationSec)
			assert.NotNil(t, rec.PacketSizes)
			assert.NotNil(t, rec.LatencySamples)
		})
	}
}

func TestReduceSortsByTimestamp(t *testing.T) {
	// Reply captured before its request in arrival order.
	rec := Reduce("baseline", []Observation{reply(10*time.Millisecond, 0), request(0, 0)})
	require.Len(t, rec.LatencySamples, 1)
	assert.InDelta(t, 10.0, rec.LatencySamples[0], 1e-9)
	assert.Zero(t, rec.UnmatchedProbes)
}

func TestReduceMatchesEachRequestOnce(t *testing.T) {
	rec := Reduce("baseline", []Observation{
		request(0, 0),
		reply(5*time.Millisecond, 0),
		reply(6*time.Millisecond, 0),
	})
	assert.Equal(t, []float64{5}, rec.LatencySamples)
	require.NotNil(t, rec.AvgLatencyMs)
	assert.InDelta(t, 5.0, *rec.AvgLatencyMs, 1e-9)
	assert.Nil(t, rec.JitterMs)
}

func TestReduceRequiresReversedAddressesAndSameIDs(t *testing.T) {
	wrongDir := reply(5*time.Millisecond, 0)
	wrongDir.Src, wrongDir.Dst = srcIP, dstIP
	wrongSeq := reply(5*time.Millisecond, 1)
	wrongID := reply(5*time.Millisecond, 0)
	wrongID.ID = 0x4321

	rec := Reduce("baseline", []Observation{request(0, 0), wrongDir, wrongSeq, wrongID})
	assert.Empty(t, rec.LatencySamples)
	assert.Equal(t, 1, rec.UnmatchedProbes)
	assert.Nil(t, rec.AvgLatencyMs)
}

func TestReduceIgnoresReplyNotLaterThanRequest(t *testing.T) {
	rec := Reduce("baseline", []Observation{request(0, 0), reply(0, 0), reply(3*time.Millisecond, 0)})
	assert.Equal(t, []float64{3}, rec.LatencySamples)
}

func TestReduceDuplicateRequestReplacesPending(t *testing.T) {
	rec := Reduce("baseline", []Observation{
		request(0, 0),
		request(10*time.Millisecond, 0),
		reply(12*time.Millisecond, 0),
	})
	assert.Equal(t, []float64{2}, rec.LatencySamples)
	assert.Zero(t, rec.UnmatchedProbes)
}

func TestReduceJitter(t *testing.T) {
	var obs []Observation
	rtts := []time.Duration{10, 12, 14, 16, 18}
	for i, rtt := range rtts {
		start := time.Duration(i) * 200 * time.Millisecond
		obs = append(obs, request(start, uint16(i)), reply(start+rtt*time.Millisecond, uint16(i)))
	}
	obs = append(obs, request(2*time.Second, 9))

	rec := Reduce("shaping", obs)
	require.NotNil(t, rec.AvgLatencyMs)
	require.NotNil(t, rec.JitterMs)
	assert.InDelta(t, 14.0, *rec.AvgLatencyMs, 1e-9)
	// Sample standard deviation of 10,12,14,16,18 is sqrt(10).
	assert.InDelta(t, 3.16227766, *rec.JitterMs, 1e-6)
	assert.Equal(t, 1, rec.UnmatchedProbes)
	assert.Len(t, rec.LatencySamples, 5)
}

func TestReduceIdenticalSamplesHaveZeroJitter(t *testing.T) {
	rec := Reduce("baseline", []Observation{
		request(0, 0), reply(4*time.Millisecond, 0),
		request(time.Second, 1), reply(time.Second+4*time.Millisecond, 1),
	})
	require.NotNil(t, rec.JitterMs)
	assert.InDelta(t, 0.0, *rec.JitterMs, 1e-9)
}

func TestStatsRecordJSONNulls(t *testing.T) {
	rec := Reduce("baseline", []Observation{udp(0, 100)})
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "avg_latency_ms")
	assert.Nil(t, decoded["avg_latency_ms"])
	assert.Nil(t, decoded["jitter_ms"])
	assert.Equal(t, float64(0), decoded["throughput_bps"])
}

func TestMergeSenderUsage(t *testing.T) {
	rec := Reduce("padding", []Observation{udp(0, 100), udp(second, 100)})
	merged := rec.Merge(SenderUsage{
		ProbesSent:  5,
		PacketsSent: 2,
		BytesSent:   200,
		CPUTime:     250 * time.Millisecond,
		WallTime:    time.Second,
		MaxRSSKB:    2048,
	})

	assert.Equal(t, 25.0, merged.CPUUsagePercent)
	assert.Equal(t, 0.25, merged.CPUTimeSec)
	assert.Equal(t, 5, merged.ProbesSent)
	assert.Equal(t, int64(2048), merged.MaxRSSKB)
	assert.Equal(t, rec.ThroughputBps, merged.ThroughputBps)
	// Merge leaves the original untouched.
	assert.Zero(t, rec.ProbesSent)

	assert.Zero(t, SenderUsage{CPUTime: time.Second}.CPUPercent())
}

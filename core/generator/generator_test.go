package generator_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"testing/iotest"
	"time"

	"github.com/gocircum/obfsmeter/core/endpoint"
	"github.com/gocircum/obfsmeter/core/generator"
	"github.com/gocircum/obfsmeter/core/obfuscation"
	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/gocircum/obfsmeter/core/scenario"
	"github.com/gocircum/obfsmeter/mocks"
	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/gocircum/obfsmeter/pkg/rusage"
	"github.com/gocircum/obfsmeter/pkg/securerandom"
	"github.com/gocircum/obfsmeter/testutils"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	epoch       = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	sourceIP    = netip.MustParseAddr("192.168.124.10")
	destIP      = netip.MustParseAddr("192.168.124.11")
	destMAC     = net.HardwareAddr{0x52, 0x54, 0x00, 0x10, 0x20, 0x30}
	fallbackMAC = net.HardwareAddr{0x52, 0x54, 0x00, 0xaa, 0xbb, 0xcc}
)

type stubMeter struct {
	samples []rusage.Usage
}

func (m *stubMeter) Sample() (rusage.Usage, error) {
	if len(m.samples) == 0 {
		return rusage.Usage{}, errors.New("no sample")
	}
	u := m.samples[0]
	m.samples = m.samples[1:]
	return u, nil
}

func testConfig() generator.Config {
	cfg := generator.DefaultConfig()
	cfg.Interface = "br0"
	cfg.SourceName = "source"
	cfg.DestinationName = "dest"
	cfg.Duration = 3 * time.Second
	cfg.Await = endpoint.AwaitOptions{Timeout: time.Second, Interval: time.Millisecond, FallbackMAC: fallbackMAC}
	return cfg
}

func testResolver() endpoint.Resolver {
	return endpoint.NewStaticResolver(
		endpoint.Endpoint{Name: "source", IP: sourceIP},
		endpoint.Endpoint{Name: "dest", IP: destIP, MAC: destMAC},
	)
}

func newClock() *clock.Fake {
	clk := clock.NewFake(epoch)
	clk.SetAutoAdvance(10 * time.Millisecond)
	return clk
}

// recordSends collects every frame handed to the mock sender.
func recordSends(s *mocks.MockSender, frames *[]packet.Frame) {
	s.EXPECT().Send(gomock.Any(), "br0", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, f packet.Frame) error {
			*frames = append(*frames, f)
			return nil
		}).AnyTimes()
}

func TestRunBaseline(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	var frames []packet.Frame
	recordSends(sender, &frames)

	clk := newClock()
	meter := &stubMeter{samples: []rusage.Usage{{CPUTime: time.Second}, {CPUTime: 1250 * time.Millisecond, MaxRSSKB: 4096}}}
	g, err := generator.New(testConfig(), sender, testResolver(),
		generator.WithClock(clk), generator.WithMeter(meter), generator.WithLogger(testutils.NewTestLogger()))
	require.NoError(t, err)

	sc, err := scenario.New(scenario.Baseline)
	require.NoError(t, err)
	rep, err := g.Run(context.Background(), sc)
	require.NoError(t, err)

	assert.True(t, rep.Source.MACFallback)
	assert.Equal(t, fallbackMAC, rep.Source.MAC)
	assert.False(t, rep.Destination.MACFallback)
	assert.Equal(t, 5, rep.Usage.ProbesSent)
	require.Greater(t, rep.Usage.PacketsSent, 0)
	assert.Len(t, frames, 5+rep.Usage.PacketsSent)

	for seq, f := range frames[:5] {
		assert.Equal(t, layers.LinkTypeEthernet, f.LinkType)
		info, err := packet.Decode(f.Data, f.LinkType)
		require.NoError(t, err)
		assert.Equal(t, packet.KindEchoRequest, info.Kind)
		assert.Equal(t, uint16(0x1234), info.ID)
		assert.Equal(t, uint16(seq), info.Seq)
		assert.Equal(t, sourceIP, info.Src)
		assert.Equal(t, destIP, info.Dst)
	}

	var total int64
	for _, f := range frames[5:] {
		info, err := packet.Decode(f.Data, f.LinkType)
		require.NoError(t, err)
		assert.Equal(t, packet.KindUDP, info.Kind)
		assert.Equal(t, bytes.Repeat([]byte("x"), 500), info.Payload)
		total += int64(f.Len())
	}
	assert.Equal(t, total, rep.Usage.BytesSent)

	// Five probe gaps, then one second of throughput phase.
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond, 200 * time.Millisecond, 200 * time.Millisecond,
		200 * time.Millisecond, 200 * time.Millisecond,
	}, clk.Sleeps())
	assert.GreaterOrEqual(t, rep.Usage.WallTime, time.Second)
	assert.Equal(t, 250*time.Millisecond, rep.Usage.CPUTime)
	assert.Equal(t, int64(4096), rep.Usage.MaxRSSKB)
}

func TestRunPadThenEncrypt(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	var frames []packet.Frame
	recordSends(sender, &frames)

	rnd := securerandom.NewSeeded(42)
	enc, err := obfuscation.NewEncryption(nil)
	require.NoError(t, err)
	pad, err := obfuscation.NewPadding(0, 50, rnd)
	require.NoError(t, err)
	// Declared encrypt-first; padding must still run before encryption.
	sc, err := scenario.New("padded-encrypted", enc, pad)
	require.NoError(t, err)

	g, err := generator.New(testConfig(), sender, testResolver(),
		generator.WithClock(newClock()), generator.WithMeter(&stubMeter{}), generator.WithLogger(testutils.NewTestLogger()))
	require.NoError(t, err)
	rep, err := g.Run(context.Background(), sc)
	require.NoError(t, err)
	require.Greater(t, rep.Usage.PacketsSent, 0)
	assert.Zero(t, rep.Usage.CPUTime)

	for _, f := range frames[5:] {
		info, err := packet.Decode(f.Data, f.LinkType)
		require.NoError(t, err)
		n := len(info.Payload)
		assert.GreaterOrEqual(t, n, 500+obfuscation.Overhead)
		assert.LessOrEqual(t, n, 550+obfuscation.Overhead)

		plain, err := enc.Open(info.Payload)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte("x"), 500), plain[:500])
	}
}

func TestRunShapesProbesAndStream(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	var frames []packet.Frame
	recordSends(sender, &frames)

	clk := newClock()
	shaper, err := obfuscation.NewShaping(obfuscation.ShapingConfig{Mode: obfuscation.ShapingConstant, RateBps: 80000}, clk, securerandom.NewSeeded(1))
	require.NoError(t, err)
	sc, err := scenario.New(scenario.Shaping, shaper)
	require.NoError(t, err)

	g, err := generator.New(testConfig(), sender, testResolver(),
		generator.WithClock(clk), generator.WithMeter(&stubMeter{}), generator.WithLogger(testutils.NewTestLogger()))
	require.NoError(t, err)
	_, err = g.Run(context.Background(), sc)
	require.NoError(t, err)

	sleeps := clk.Sleeps()
	// Each probe is preceded by its shaping delay and followed by the gap.
	require.GreaterOrEqual(t, len(sleeps), 10)
	probe := time.Duration(float64(frames[0].Len()*8) / 80000 * float64(time.Second))
	assert.Equal(t, probe, sleeps[0])
	assert.Equal(t, 200*time.Millisecond, sleeps[1])

	stream := time.Duration(float64(frames[5].Len()*8) / 80000 * float64(time.Second))
	assert.Equal(t, stream, sleeps[10])
	assert.Len(t, sleeps, 10+len(frames)-5)
}

func TestRunEndpointUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	resolver := mocks.NewMockResolver(ctrl)
	resolver.EXPECT().Lookup(gomock.Any(), "source").Return(endpoint.Endpoint{}, endpoint.ErrNotReady).AnyTimes()

	cfg := testConfig()
	cfg.Await.Timeout = time.Minute
	cfg.Await.Interval = 10 * time.Second
	clk := clock.NewFake(epoch)
	g, err := generator.New(cfg, sender, resolver, generator.WithClock(clk), generator.WithLogger(testutils.NewTestLogger()))
	require.NoError(t, err)

	sc, err := scenario.New(scenario.Baseline)
	require.NoError(t, err)
	_, err = g.Run(context.Background(), sc)
	assert.ErrorIs(t, err, endpoint.ErrUnavailable)
	// The bounded wait runs on the generator's clock.
	assert.Equal(t, []time.Duration{
		10 * time.Second, 10 * time.Second, 10 * time.Second,
		10 * time.Second, 10 * time.Second, 10 * time.Second,
	}, clk.Sleeps())
}

func TestRunTransformFailureAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	var frames []packet.Frame
	recordSends(sender, &frames)

	enc, err := obfuscation.NewEncryption(nil, obfuscation.WithNonceReader(iotest.ErrReader(errors.New("entropy exhausted"))))
	require.NoError(t, err)
	sc, err := scenario.New(scenario.Encryption, enc)
	require.NoError(t, err)

	g, err := generator.New(testConfig(), sender, testResolver(),
		generator.WithClock(newClock()), generator.WithMeter(&stubMeter{}), generator.WithLogger(testutils.NewTestLogger()))
	require.NoError(t, err)
	_, err = g.Run(context.Background(), sc)

	var terr *obfuscation.TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, obfuscation.KindEncryption, terr.Kind)
	// Probes went out, no plaintext datagram did.
	assert.Len(t, frames, 5)
}

func TestRunSendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("operation not permitted"))

	g, err := generator.New(testConfig(), sender, testResolver(),
		generator.WithClock(newClock()), generator.WithLogger(testutils.NewTestLogger()))
	require.NoError(t, err)
	sc, err := scenario.New(scenario.Baseline)
	require.NoError(t, err)

	rep, err := g.Run(context.Background(), sc)
	assert.ErrorContains(t, err, "operation not permitted")
	assert.Zero(t, rep.Usage.ProbesSent)
}

func TestRunWithoutDestinationMACSendsL3(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	var frames []packet.Frame
	recordSends(sender, &frames)

	resolver := endpoint.NewStaticResolver(
		endpoint.Endpoint{Name: "source", IP: sourceIP},
		endpoint.Endpoint{Name: "dest", IP: destIP},
	)
	g, err := generator.New(testConfig(), sender, resolver,
		generator.WithClock(newClock()), generator.WithMeter(&stubMeter{}), generator.WithLogger(testutils.NewTestLogger()))
	require.NoError(t, err)
	sc, err := scenario.New(scenario.Baseline)
	require.NoError(t, err)

	rep, err := g.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Empty(t, rep.Destination.MAC)
	for _, f := range frames {
		assert.Equal(t, layers.LinkTypeRaw, f.LinkType)
	}
}

func TestThroughputPhase(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     time.Duration
	}{
		{10 * time.Second, 8 * time.Second},
		{3 * time.Second, time.Second},
		{2 * time.Second, time.Second},
		{0, time.Second},
	}
	for _, tt := range tests {
		cfg := generator.DefaultConfig()
		cfg.Duration = tt.duration
		assert.Equal(t, tt.want, cfg.ThroughputPhase(), "duration %s", tt.duration)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := generator.DefaultConfig()
	cfg.ProbeCount = -1
	_, err := generator.New(cfg, nil, nil)
	assert.Error(t, err)
}

func TestRunWithoutResourceUsage(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), "br0", gomock.Any()).Return(nil).AnyTimes()

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().With(gomock.Any()).Return(log).AnyTimes()
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn("Source MAC unknown, using fallback", gomock.Any()).Times(1)
	log.EXPECT().Warn("Resource usage unavailable", gomock.Any()).Times(1)

	g, err := generator.New(testConfig(), sender, testResolver(),
		generator.WithClock(newClock()), generator.WithMeter(&stubMeter{}), generator.WithLogger(log))
	require.NoError(t, err)

	sc, err := scenario.New(scenario.Baseline)
	require.NoError(t, err)
	rep, err := g.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Zero(t, rep.Usage.CPUTime)
	assert.Zero(t, rep.Usage.MaxRSSKB)
	assert.Greater(t, rep.Usage.PacketsSent, 0)
}

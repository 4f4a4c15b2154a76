package testutils

import (
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

// TestTimeout is the default timeout for operations in tests.
const TestTimeout = 5 * time.Second

// TestInterval is the default interval for polling in tests.
const TestInterval = 100 * time.Millisecond

// TestFlow is a source/destination pair with hardware addresses on both
// ends, so frames built for it carry an Ethernet header.
var TestFlow = packet.Addressing{
	SrcIP:  netip.MustParseAddr("192.168.124.10"),
	DstIP:  netip.MustParseAddr("192.168.124.11"),
	SrcMAC: net.HardwareAddr{0x52, 0x54, 0x00, 0xaa, 0xbb, 0xcc},
	DstMAC: net.HardwareAddr{0x52, 0x54, 0x00, 0xaa, 0xbb, 0xcd},
}

// MustEcho builds an echo frame. Replies travel on the reversed flow.
func MustEcho(t *testing.T, flow packet.Addressing, kind packet.Kind, id, seq uint16) packet.Frame {
	t.Helper()
	if kind == packet.KindEchoReply {
		flow = flow.Reverse()
	}
	f, err := packet.BuildEcho(flow, kind, id, seq, nil)
	require.NoError(t, err)
	return f
}

// TimedFrame is a frame with its capture time.
type TimedFrame struct {
	At    time.Time
	Frame packet.Frame
}

// WritePcap writes frames to a pcap file in the test's temp dir and
// returns its path. All frames must share a link type.
func WritePcap(t *testing.T, frames []TimedFrame) string {
	t.Helper()
	require.NotEmpty(t, frames)

	path := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, frames[0].Frame.LinkType))
	for _, tf := range frames {
		ci := gopacket.CaptureInfo{Timestamp: tf.At, CaptureLength: tf.Frame.Len(), Length: tf.Frame.Len()}
		require.NoError(t, w.WritePacket(ci, tf.Frame.Data))
	}
	return path
}

package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// SnapLen is the snapshot length written to pcap headers.
const SnapLen = 65536

// PcapSender records frames to a pcap stream instead of sending them.
// The file header is written with the link type of the first frame; a
// pcap stream holds a single link type, so later frames must match it.
type PcapSender struct {
	mu       sync.Mutex
	w        *pcapgo.Writer
	closer   io.Closer
	clk      clock.Clock
	linkType layers.LinkType
	started  bool
	closed   bool
	frames   int
}

// NewPcapSender writes to w, stamping frames with clk.
func NewPcapSender(w io.Writer, clk clock.Clock) *PcapSender {
	return &PcapSender{w: pcapgo.NewWriter(w), clk: clk}
}

// NewPcapFileSender creates (or truncates) path and writes frames to it.
func NewPcapFileSender(path string, clk clock.Clock) (*PcapSender, error) {
	if path == "" {
		return nil, fmt.Errorf("pcap sender requires an output path")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcap file: %w", err)
	}
	s := NewPcapSender(f, clk)
	s.closer = f
	return s, nil
}

// Send appends frame to the capture. The interface name is ignored.
func (s *PcapSender) Send(ctx context.Context, _ string, frame packet.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	if !s.started {
		if err := s.w.WriteFileHeader(SnapLen, frame.LinkType); err != nil {
			return fmt.Errorf("failed to write pcap header: %w", err)
		}
		s.linkType = frame.LinkType
		s.started = true
	} else if frame.LinkType != s.linkType {
		return fmt.Errorf("pcap stream is %s, cannot append %s frame", s.linkType, frame.LinkType)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     s.clk.Now(),
		CaptureLength: frame.Len(),
		Length:        frame.Len(),
	}
	if err := s.w.WritePacket(ci, frame.Data); err != nil {
		return fmt.Errorf("failed to write pcap record: %w", err)
	}
	s.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (s *PcapSender) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Close closes the underlying file, if the sender owns one.
func (s *PcapSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type packetDataReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// pcapngMagic is the block type of a pcapng section header.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// PcapSource replays a pcap or pcapng stream.
type PcapSource struct {
	r      packetDataReader
	closer io.Closer
}

// NewPcapSource reads a capture from r, detecting the file format.
func NewPcapSource(r io.Reader) (*PcapSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}
	var pr packetDataReader
	if bytes.Equal(magic, pcapngMagic) {
		pr, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		pr, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid capture file: %w", err)
	}
	return &PcapSource{r: pr}, nil
}

// OpenPcapFile opens a capture file on disk.
func OpenPcapFile(path string) (*PcapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	src, err := NewPcapSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// ReadPacket returns the next record, or io.EOF at the end of the file.
func (s *PcapSource) ReadPacket(ctx context.Context) (Packet, error) {
	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}
	data, ci, err := s.r.ReadPacketData()
	if err != nil {
		return Packet{}, err
	}
	return Packet{
		Data:      data,
		Timestamp: ci.Timestamp,
		Length:    ci.Length,
		LinkType:  s.r.LinkType(),
	}, nil
}

// Close closes the underlying file when the source opened it.
func (s *PcapSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

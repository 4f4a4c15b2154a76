//go:build linux

package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// systemSender writes Ethernet frames to an AF_PACKET socket and bare IPv4
// packets to a raw IP socket with a caller-supplied header. Both sockets
// are opened on first use and need CAP_NET_RAW.
type systemSender struct {
	mu      sync.Mutex
	linkFD  int
	rawConn *ipv4.RawConn
	ifaces  map[string]*net.Interface
	closed  bool
}

// NewSystemSender returns a Sender that uses kernel sockets.
func NewSystemSender() (Sender, error) {
	return &systemSender{linkFD: -1, ifaces: make(map[string]*net.Interface)}, nil
}

func (s *systemSender) Send(ctx context.Context, iface string, frame packet.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	ifi, err := s.lookup(iface)
	if err != nil {
		return err
	}
	switch frame.LinkType {
	case layers.LinkTypeEthernet:
		return s.sendLink(ifi, frame.Data)
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		return s.sendRaw(ifi, frame.Data)
	default:
		return fmt.Errorf("unsupported link type %s", frame.LinkType)
	}
}

func (s *systemSender) lookup(name string) (*net.Interface, error) {
	if ifi, ok := s.ifaces[name]; ok {
		return ifi, nil
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface '%s': %w", name, err)
	}
	s.ifaces[name] = ifi
	return ifi, nil
}

func (s *systemSender) sendLink(ifi *net.Interface, data []byte) error {
	if len(data) < 14 {
		return ErrFrameTooShort
	}
	if s.linkFD < 0 {
		fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, 0)
		if err != nil {
			return fmt.Errorf("failed to open packet socket: %w", err)
		}
		s.linkFD = fd
	}
	addr := &unix.SockaddrLinklayer{Ifindex: ifi.Index, Halen: 6}
	copy(addr.Addr[:], data[:6])
	if err := unix.Sendto(s.linkFD, data, 0, addr); err != nil {
		return fmt.Errorf("packet socket send on %s: %w", ifi.Name, err)
	}
	return nil
}

func (s *systemSender) sendRaw(ifi *net.Interface, data []byte) error {
	h, err := ipv4.ParseHeader(data)
	if err != nil {
		return fmt.Errorf("invalid IPv4 header: %w", err)
	}
	if s.rawConn == nil {
		c, err := net.ListenPacket("ip4:255", "0.0.0.0")
		if err != nil {
			return fmt.Errorf("failed to open raw IP socket: %w", err)
		}
		rc, err := ipv4.NewRawConn(c)
		if err != nil {
			c.Close()
			return fmt.Errorf("failed to wrap raw IP socket: %w", err)
		}
		s.rawConn = rc
	}
	cm := &ipv4.ControlMessage{IfIndex: ifi.Index}
	if err := s.rawConn.WriteTo(h, data[h.Len:], cm); err != nil {
		return fmt.Errorf("raw IP send on %s: %w", ifi.Name, err)
	}
	return nil
}

func (s *systemSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	if s.linkFD >= 0 {
		firstErr = unix.Close(s.linkFD)
		s.linkFD = -1
	}
	if s.rawConn != nil {
		if err := s.rawConn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

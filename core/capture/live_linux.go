//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocircum/obfsmeter/pkg/logging"
	"github.com/google/gopacket/layers"
	"golang.org/x/sys/unix"
)

const (
	// DefaultLiveBuffer is the number of frames queued between the socket
	// reader and the engine.
	DefaultLiveBuffer = 4096
	liveSnapLen       = 65536
	livePollInterval  = 200 * time.Millisecond
)

// LiveSource captures every frame on an interface through an AF_PACKET
// socket. Frames that do not fit in the queue are counted as dropped, as
// are frames the kernel reports dropping.
type LiveSource struct {
	fd      int
	ch      chan Packet
	done    chan struct{}
	failed  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
	logger  logging.Logger
	err     atomic.Value
}

// OpenLive starts capturing on iface. Requires CAP_NET_RAW.
func OpenLive(iface string, buffer int, logger logging.Logger) (*LiveSource, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("interface '%s': %w", iface, err)
	}
	if buffer <= 0 {
		buffer = DefaultLiveBuffer
	}
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("failed to open packet socket: %w", err)
	}
	addr := &unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ALL), Ifindex: ifi.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind packet socket to %s: %w", iface, err)
	}
	tv := unix.NsecToTimeval(livePollInterval.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}

	s := &LiveSource{
		fd:     fd,
		ch:     make(chan Packet, buffer),
		done:   make(chan struct{}),
		failed: make(chan struct{}),
		logger: logger.With("component", "live-capture", "iface", iface),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s, nil
}

func (s *LiveSource) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, liveSnapLen)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		now := time.Now()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			s.fail(err)
			return
		}
		p := Packet{
			Data:      append([]byte(nil), buf[:n]...),
			Timestamp: now,
			Length:    n,
			LinkType:  layers.LinkTypeEthernet,
		}
		select {
		case s.ch <- p:
		default:
			s.dropped.Add(1)
		}
	}
}

// fail records the error that stopped the reader and wakes ReadPacket.
func (s *LiveSource) fail(err error) {
	s.err.Store(err)
	s.logger.Error("Capture socket failed", "error", err)
	close(s.failed)
}

// ReadPacket returns the next queued frame. Once the reader has failed,
// frames already queued are still returned, then the reader's error.
func (s *LiveSource) ReadPacket(ctx context.Context) (Packet, error) {
	select {
	case p := <-s.ch:
		return p, nil
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	case <-s.done:
		return Packet{}, io.EOF
	case <-s.failed:
		select {
		case p := <-s.ch:
			return p, nil
		default:
		}
		return Packet{}, fmt.Errorf("capture socket: %w", s.Err())
	}
}

// Dropped returns queue overflows plus kernel drops.
func (s *LiveSource) Dropped() uint64 {
	n := s.dropped.Load()
	if stats, err := unix.GetsockoptTpacketStats(s.fd, unix.SOL_PACKET, unix.PACKET_STATISTICS); err == nil {
		s.dropped.Add(uint64(stats.Drops))
		n += uint64(stats.Drops)
	}
	return n
}

// Err returns the error that stopped the reader, if any.
func (s *LiveSource) Err() error {
	if err, ok := s.err.Load().(error); ok {
		return err
	}
	return nil
}

// Close stops the reader and closes the socket.
func (s *LiveSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		err = unix.Close(s.fd)
	})
	return err
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

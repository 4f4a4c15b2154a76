//go:generate mockgen -package=mocks -destination=../../mocks/mock_sender.go github.com/gocircum/obfsmeter/core/transport Sender

package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/gocircum/obfsmeter/pkg/clock"
)

// Sender puts frames on the wire of the named interface.
// Sending is fire-and-forget: a nil error means the frame was handed to
// the medium, not that it arrived.
type Sender interface {
	// Send transmits one frame.
	Send(ctx context.Context, iface string, frame packet.Frame) error
	// Close releases any sockets or files held by the sender.
	Close() error
}

// Middleware is a function that wraps a Sender to add functionality.
type Middleware func(sender Sender) Sender

// Mode selects the sender implementation.
type Mode string

const (
	// ModeSystem sends through kernel packet and raw IP sockets.
	ModeSystem Mode = "system"
	// ModePcap writes frames to a pcap file instead of a network.
	ModePcap Mode = "pcap"
)

// Config holds the options common to all senders.
type Config struct {
	Mode Mode
	// PcapPath is the output file for ModePcap.
	PcapPath string
	Clock    clock.Clock
}

// Factory is a function that creates a new Sender with the given config.
type Factory func(cfg *Config) (Sender, error)

// ErrFrameTooShort is returned when a frame cannot carry the headers its
// link type requires.
var ErrFrameTooShort = errors.New("frame too short")

// New builds the sender selected by cfg.Mode.
func New(cfg *Config) (Sender, error) {
	switch cfg.Mode {
	case ModeSystem, "":
		return NewSystemSender()
	case ModePcap:
		clk := cfg.Clock
		if clk == nil {
			clk = clock.System()
		}
		return NewPcapFileSender(cfg.PcapPath, clk)
	default:
		return nil, fmt.Errorf("unknown sender mode '%s'", cfg.Mode)
	}
}

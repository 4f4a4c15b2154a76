// Package capture records the packets seen on the medium during a
// scenario's window and reduces them to statistics.
package capture

import (
	"context"
	"time"

	"github.com/google/gopacket/layers"
)

// Packet is one frame delivered by a Source.
type Packet struct {
	Data      []byte
	Timestamp time.Time
	// Length is the original wire length, which may exceed len(Data)
	// when the source truncates.
	Length   int
	LinkType layers.LinkType
}

// Source delivers captured frames. ReadPacket blocks until a frame is
// available or ctx is done, and returns io.EOF once the source is
// exhausted.
type Source interface {
	ReadPacket(ctx context.Context) (Packet, error)
	Close() error
}

// DropCounter is implemented by sources that can lose frames, for example
// when their buffer overflows.
type DropCounter interface {
	Dropped() uint64
}

// Package analysis reduces a captured packet trace to the metrics an
// experiment reports: throughput, round-trip latency and jitter.
package analysis

import (
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/gocircum/obfsmeter/core/packet"
	"github.com/google/gopacket/layers"
)

// ErrTraceFrozen is returned when appending to a frozen trace.
var ErrTraceFrozen = errors.New("trace is frozen")

// Observation is one captured packet.
type Observation struct {
	Timestamp time.Time
	// Length is the wire length of the packet in bytes.
	Length int
	Src    netip.Addr
	Dst    netip.Addr
	Kind   packet.Kind
	ID     uint16
	Seq    uint16
}

// Observe decodes a captured frame. Frames that do not decode still
// produce an observation of kind KindOther so they count towards volume.
func Observe(ts time.Time, data []byte, length int, linkType layers.LinkType) Observation {
	if length <= 0 {
		length = len(data)
	}
	obs := Observation{Timestamp: ts, Length: length, Kind: packet.KindOther}
	info, err := packet.Decode(data, linkType)
	if err != nil {
		return obs
	}
	obs.Src = info.Src
	obs.Dst = info.Dst
	obs.Kind = info.Kind
	obs.ID = info.ID
	obs.Seq = info.Seq
	return obs
}

// Trace is the append-only record of one capture window.
type Trace struct {
	mu     sync.Mutex
	obs    []Observation
	frozen bool
}

// NewTrace returns an empty, open trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Append records an observation.
func (t *Trace) Append(o Observation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrTraceFrozen
	}
	t.obs = append(t.obs, o)
	return nil
}

// Freeze closes the trace. It is idempotent.
func (t *Trace) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (t *Trace) Frozen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frozen
}

// Len returns the number of observations.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.obs)
}

// Observations returns a copy of the recorded observations in arrival
// order.
func (t *Trace) Observations() []Observation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Observation, len(t.obs))
	copy(out, t.obs)
	return out
}

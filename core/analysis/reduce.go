package analysis

import (
	"net/netip"
	"slices"
	"time"

	"github.com/gocircum/obfsmeter/core/packet"
)

type probeKey struct {
	src, dst netip.Addr
	id, seq  uint16
}

// Reduce computes the statistics of a trace. Observations are ordered by
// timestamp first; ties keep arrival order.
//
// Echo replies are matched to the request with reversed addresses and the
// same identifier and sequence number. A reply only counts when it is
// strictly later than its request, and each request yields at most one
// sample. A repeated request before any reply replaces the pending one.
// Requests never answered are counted in UnmatchedProbes.
func Reduce(scenario string, observations []Observation) StatsRecord {
	obs := slices.Clone(observations)
	slices.SortStableFunc(obs, func(a, b Observation) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	rec := StatsRecord{
		Scenario:       scenario,
		PacketCount:    len(obs),
		PacketSizes:    make([]int, 0, len(obs)),
		LatencySamples: []float64{},
	}
	for _, o := range obs {
		rec.TotalBytes += int64(o.Length)
		rec.PacketSizes = append(rec.PacketSizes, o.Length)
	}

	if len(obs) > 0 {
		span := obs[len(obs)-1].Timestamp.Sub(obs[0].Timestamp)
		if span > 0 {
			rec.CaptureDurationSec = span.Seconds()
			rec.ThroughputBps = int64(float64(rec.TotalBytes*8) / span.Seconds())
		}
	}

	pending := make(map[probeKey]time.Time)
	for _, o := range obs {
		switch o.Kind {
		case packet.KindEchoRequest:
			pending[probeKey{o.Src, o.Dst, o.ID, o.Seq}] = o.Timestamp
		case packet.KindEchoReply:
			key := probeKey{o.Dst, o.Src, o.ID, o.Seq}
			sent, ok := pending[key]
			if !ok || !o.Timestamp.After(sent) {
				continue
			}
			rtt := o.Timestamp.Sub(sent)
			rec.LatencySamples = append(rec.LatencySamples, float64(rtt)/float64(time.Millisecond))
			delete(pending, key)
		}
	}
	rec.UnmatchedProbes = len(pending)

	if n := len(rec.LatencySamples); n > 0 {
		avg := mean(rec.LatencySamples)
		rec.AvgLatencyMs = &avg
		if n > 1 {
			jitter := sampleStdDev(rec.LatencySamples, avg)
			rec.JitterMs = &jitter
		}
	}
	return rec
}

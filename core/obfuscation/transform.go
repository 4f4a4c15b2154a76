// Package obfuscation implements the traffic obfuscation transforms: payload
// encryption, payload padding and send-timing shaping.
//
// Transforms form a closed set of variants behind two narrow interfaces,
// PayloadTransform and TimingTransform. Each variant holds only immutable
// configuration plus injected randomness and clock sources, so a single
// instance can serve concurrent senders when those sources allow it.
package obfuscation

import (
	"context"
	"time"
)

// Kind identifies a transform variant.
type Kind string

const (
	KindEncryption Kind = "encryption"
	KindPadding    Kind = "padding"
	KindShaping    Kind = "shaping"
)

// Transform is the common behaviour of every variant.
type Transform interface {
	Kind() Kind
}

// PayloadTransform rewrites an outgoing payload. Implementations never
// mutate or retain the input slice.
type PayloadTransform interface {
	Transform
	Apply(payload []byte) ([]byte, error)
}

// TimingTransform blocks the caller before a packet of packetSize bytes is
// handed to the send path and reports how long it waited.
type TimingTransform interface {
	Transform
	Delay(ctx context.Context, packetSize int) (time.Duration, error)
}

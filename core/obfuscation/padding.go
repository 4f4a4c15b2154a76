package obfuscation

import (
	"fmt"

	"github.com/gocircum/obfsmeter/pkg/securerandom"
)

// PaddingTransform appends a random number of random bytes to a payload.
// The bytes are camouflage only, so the source need not be secure.
type PaddingTransform struct {
	min int
	max int
	rnd securerandom.Source
}

// NewPadding builds a PaddingTransform drawing pad lengths uniformly from
// [min, max]. A nil rnd selects securerandom.Crypto.
func NewPadding(min, max int, rnd securerandom.Source) (*PaddingTransform, error) {
	if min < 0 {
		return nil, &ConfigError{Kind: KindPadding, Reason: fmt.Sprintf("min_pad must be >= 0, got %d", min)}
	}
	if max < min {
		return nil, &ConfigError{Kind: KindPadding, Reason: fmt.Sprintf("max_pad (%d) must be >= min_pad (%d)", max, min)}
	}
	if rnd == nil {
		rnd = securerandom.Crypto()
	}
	return &PaddingTransform{min: min, max: max, rnd: rnd}, nil
}

// Kind implements Transform.
func (p *PaddingTransform) Kind() Kind {
	return KindPadding
}

// Bounds returns the configured pad length range.
func (p *PaddingTransform) Bounds() (min, max int) {
	return p.min, p.max
}

// Apply implements PayloadTransform. A zero-length draw returns the input
// slice itself.
func (p *PaddingTransform) Apply(payload []byte) ([]byte, error) {
	if p.max == 0 {
		return payload, nil
	}
	n, err := p.rnd.IntRange(p.min, p.max)
	if err != nil {
		return nil, &TransformError{Kind: KindPadding, Err: err}
	}
	if n <= 0 {
		return payload, nil
	}

	out := make([]byte, len(payload)+n)
	copy(out, payload)
	if _, err := p.rnd.Read(out[len(payload):]); err != nil {
		return nil, &TransformError{Kind: KindPadding, Err: err}
	}
	return out, nil
}

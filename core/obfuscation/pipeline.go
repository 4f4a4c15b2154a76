package obfuscation

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// payloadOrder fixes the order payload transforms run in: padding is
// applied before encryption so the pad is hidden inside the ciphertext.
var payloadOrder = map[Kind]int{
	KindPadding:    0,
	KindEncryption: 1,
}

// Pipeline composes the transforms of one scenario. An empty Pipeline is
// the baseline and leaves payloads and timing untouched.
type Pipeline struct {
	payload []PayloadTransform
	timing  []TimingTransform
	kinds   []Kind
}

// NewPipeline builds a Pipeline. Declaration order does not matter for
// payload transforms; each kind may appear at most once.
func NewPipeline(transforms ...Transform) (*Pipeline, error) {
	p := &Pipeline{}
	seen := make(map[Kind]bool, len(transforms))
	for _, t := range transforms {
		if t == nil {
			continue
		}
		if seen[t.Kind()] {
			return nil, &ConfigError{Kind: t.Kind(), Reason: "transform listed more than once"}
		}
		seen[t.Kind()] = true

		matched := false
		if pt, ok := t.(PayloadTransform); ok {
			p.payload = append(p.payload, pt)
			matched = true
		}
		if tt, ok := t.(TimingTransform); ok {
			p.timing = append(p.timing, tt)
			matched = true
		}
		if !matched {
			return nil, &ConfigError{Kind: t.Kind(), Reason: fmt.Sprintf("%T is neither a payload nor a timing transform", t)}
		}
		p.kinds = append(p.kinds, t.Kind())
	}

	sort.SliceStable(p.payload, func(i, j int) bool {
		return rank(p.payload[i].Kind()) < rank(p.payload[j].Kind())
	})
	return p, nil
}

func rank(k Kind) int {
	if r, ok := payloadOrder[k]; ok {
		return r
	}
	return len(payloadOrder)
}

// Empty reports whether the pipeline has no transforms.
func (p *Pipeline) Empty() bool {
	return len(p.kinds) == 0
}

// Kinds returns the transform kinds in declaration order.
func (p *Pipeline) Kinds() []Kind {
	out := make([]Kind, len(p.kinds))
	copy(out, p.kinds)
	return out
}

// PayloadKinds returns the payload transform kinds in application order.
func (p *Pipeline) PayloadKinds() []Kind {
	out := make([]Kind, 0, len(p.payload))
	for _, t := range p.payload {
		out = append(out, t.Kind())
	}
	return out
}

// Apply runs the payload transforms in order.
func (p *Pipeline) Apply(payload []byte) ([]byte, error) {
	out := payload
	for _, t := range p.payload {
		var err error
		if out, err = t.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delay runs the timing transforms for a packet of packetSize bytes and
// returns the total time spent waiting.
func (p *Pipeline) Delay(ctx context.Context, packetSize int) (time.Duration, error) {
	var total time.Duration
	for _, t := range p.timing {
		d, err := t.Delay(ctx, packetSize)
		total += d
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

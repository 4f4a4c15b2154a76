package obfuscation

import (
	"context"
	"fmt"
	"time"

	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/gocircum/obfsmeter/pkg/securerandom"
)

// ShapingMode selects how ShapingTransform computes its delay.
type ShapingMode string

const (
	// ShapingRandom waits a uniformly random time in [MinDelay, MaxDelay].
	ShapingRandom ShapingMode = "random"
	// ShapingConstant paces packets at RateBps, or waits MinDelay when no
	// rate is configured.
	ShapingConstant ShapingMode = "constant"
)

// ShapingConfig is the immutable configuration of a ShapingTransform.
type ShapingConfig struct {
	Mode     ShapingMode
	MinDelay time.Duration
	MaxDelay time.Duration
	// RateBps is the target bitrate for constant mode. Zero disables it.
	RateBps float64
}

// ShapingTransform injects a blocking delay before each send. Unknown
// modes pass packets through without waiting.
type ShapingTransform struct {
	cfg ShapingConfig
	clk clock.Clock
	rnd securerandom.Source
}

// NewShaping builds a ShapingTransform. Nil clk and rnd select the system
// clock and securerandom.Crypto.
func NewShaping(cfg ShapingConfig, clk clock.Clock, rnd securerandom.Source) (*ShapingTransform, error) {
	switch cfg.Mode {
	case ShapingRandom:
		if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
			return nil, &ConfigError{
				Kind:   KindShaping,
				Reason: fmt.Sprintf("random mode needs 0 <= min_delay <= max_delay, got %s..%s", cfg.MinDelay, cfg.MaxDelay),
			}
		}
	case ShapingConstant:
		if cfg.MinDelay < 0 {
			return nil, &ConfigError{Kind: KindShaping, Reason: fmt.Sprintf("min_delay must be >= 0, got %s", cfg.MinDelay)}
		}
		if cfg.RateBps < 0 {
			return nil, &ConfigError{Kind: KindShaping, Reason: fmt.Sprintf("rate_bps must be >= 0, got %g", cfg.RateBps)}
		}
	}
	if clk == nil {
		clk = clock.System()
	}
	if rnd == nil {
		rnd = securerandom.Crypto()
	}
	return &ShapingTransform{cfg: cfg, clk: clk, rnd: rnd}, nil
}

// Kind implements Transform.
func (s *ShapingTransform) Kind() Kind {
	return KindShaping
}

// Config returns the transform configuration.
func (s *ShapingTransform) Config() ShapingConfig {
	return s.cfg
}

// Interval computes the delay for a packet of packetSize bytes without
// waiting.
func (s *ShapingTransform) Interval(packetSize int) (time.Duration, error) {
	switch s.cfg.Mode {
	case ShapingRandom:
		d, err := s.rnd.DurationRange(s.cfg.MinDelay, s.cfg.MaxDelay)
		if err != nil {
			return 0, &TransformError{Kind: KindShaping, Err: err}
		}
		return d, nil
	case ShapingConstant:
		if s.cfg.RateBps > 0 {
			seconds := float64(packetSize*8) / s.cfg.RateBps
			return time.Duration(seconds * float64(time.Second)), nil
		}
		return s.cfg.MinDelay, nil
	default:
		return 0, nil
	}
}

// Delay implements TimingTransform. It blocks the calling goroutine for
// the computed interval and returns the time actually spent waiting.
func (s *ShapingTransform) Delay(ctx context.Context, packetSize int) (time.Duration, error) {
	d, err := s.Interval(packetSize)
	if err != nil || d <= 0 {
		return 0, err
	}
	start := s.clk.Now()
	err = s.clk.Sleep(ctx, d)
	return s.clk.Now().Sub(start), err
}

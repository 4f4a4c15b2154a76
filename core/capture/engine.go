package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/gocircum/obfsmeter/core/analysis"
	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/gocircum/obfsmeter/pkg/logging"
)

var (
	// ErrEngineUsed is returned when Run is called on an engine that has
	// already run.
	ErrEngineUsed = errors.New("capture engine already used")
	// ErrCaptureAborted is returned when the capture is cancelled before
	// its window ends. The partial trace is discarded.
	ErrCaptureAborted = errors.New("capture aborted")
)

// State is the lifecycle stage of an Engine.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateReduced
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateReduced:
		return "reduced"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Engine captures one window of traffic for one scenario. An Engine is
// single use.
type Engine struct {
	scenario string
	window   time.Duration
	clk      clock.Clock
	logger   logging.Logger
	state    atomic.Int32
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock stamps packets that arrive without a timestamp.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) { e.clk = clk }
}

// WithLogger sets the engine logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine returns an idle engine. A zero window reads until the source
// is exhausted.
func NewEngine(scenario string, window time.Duration, opts ...Option) *Engine {
	e := &Engine{
		scenario: scenario,
		window:   window,
		clk:      clock.System(),
		logger:   logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "capture", "scenario", scenario)
	return e
}

// State returns the current lifecycle stage.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Run reads from src until the window elapses or src reports io.EOF, then
// reduces the trace. Cancelling ctx before that aborts the capture with
// ErrCaptureAborted. Run does not close src.
func (e *Engine) Run(ctx context.Context, src Source) (analysis.StatsRecord, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateCapturing)) {
		return analysis.StatsRecord{}, ErrEngineUsed
	}

	windowCtx := ctx
	if e.window > 0 {
		var cancel context.CancelFunc
		windowCtx, cancel = context.WithTimeout(ctx, e.window)
		defer cancel()
	}

	e.logger.Debug("Capture started", "window", e.window)
	trace := analysis.NewTrace()
	for {
		p, err := src.ReadPacket(windowCtx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				e.state.Store(int32(StateAborted))
				e.logger.Warn("Capture aborted, trace discarded", "packets", trace.Len())
				return analysis.StatsRecord{}, fmt.Errorf("%w: %v", ErrCaptureAborted, ctx.Err())
			}
			if windowCtx.Err() != nil {
				break
			}
			e.state.Store(int32(StateAborted))
			return analysis.StatsRecord{}, fmt.Errorf("capture read failed: %w", err)
		}
		ts := p.Timestamp
		if ts.IsZero() {
			ts = e.clk.Now()
		}
		if err := trace.Append(analysis.Observe(ts, p.Data, p.Length, p.LinkType)); err != nil {
			return analysis.StatsRecord{}, err
		}
	}
	trace.Freeze()

	rec := analysis.Reduce(e.scenario, trace.Observations())
	if dc, ok := src.(DropCounter); ok {
		rec.DroppedPackets = dc.Dropped()
	}
	e.state.Store(int32(StateReduced))
	e.logger.Info("Capture reduced",
		"packets", rec.PacketCount,
		"bytes", rec.TotalBytes,
		"latency_samples", len(rec.LatencySamples),
		"unmatched_probes", rec.UnmatchedProbes,
		"dropped", rec.DroppedPackets)
	return rec, nil
}

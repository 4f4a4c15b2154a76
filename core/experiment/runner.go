// Package experiment runs scenarios end to end: it captures the medium
// while the generator sends, merges both sides into one record and
// persists it.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocircum/obfsmeter/core/analysis"
	"github.com/gocircum/obfsmeter/core/capture"
	"github.com/gocircum/obfsmeter/core/generator"
	"github.com/gocircum/obfsmeter/core/results"
	"github.com/gocircum/obfsmeter/core/scenario"
	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/gocircum/obfsmeter/pkg/logging"
)

// SourceOpener opens the capture source for one scenario. The runner
// closes the source when the scenario ends.
type SourceOpener func(scenario string) (capture.Source, error)

// Outcome is the result of one successful scenario.
type Outcome struct {
	Scenario string
	Record   analysis.StatsRecord
	// Path is where the record was saved.
	Path string
}

// Runner executes scenarios one after another.
type Runner struct {
	catalogue    *scenario.Catalogue
	gen          *generator.Generator
	openSource   SourceOpener
	store        *results.Store
	window       time.Duration
	startupDelay time.Duration
	clk          clock.Clock
	logger       logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithWindow sets the capture window of each scenario.
func WithWindow(d time.Duration) Option {
	return func(r *Runner) { r.window = d }
}

// WithStartupDelay sets how long the capture runs before traffic starts.
func WithStartupDelay(d time.Duration) Option {
	return func(r *Runner) { r.startupDelay = d }
}

// WithClock sets the clock used for the startup delay.
func WithClock(clk clock.Clock) Option {
	return func(r *Runner) { r.clk = clk }
}

// WithLogger sets the runner logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner builds a Runner. A nil openSource runs without capture; the
// records then only carry the sender's accounting.
func NewRunner(cat *scenario.Catalogue, gen *generator.Generator, openSource SourceOpener, store *results.Store, opts ...Option) *Runner {
	r := &Runner{
		catalogue:    cat,
		gen:          gen,
		openSource:   openSource,
		store:        store,
		window:       10 * time.Second,
		startupDelay: time.Second,
		clk:          clock.System(),
		logger:       logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "runner")
	return r
}

type captureResult struct {
	rec analysis.StatsRecord
	err error
}

// RunScenario runs one scenario. A generator failure cancels the capture
// and discards its trace; nothing is saved for the scenario.
func (r *Runner) RunScenario(ctx context.Context, name string) (Outcome, error) {
	sc, err := r.catalogue.Build(name)
	if err != nil {
		return Outcome{}, err
	}
	logger := r.logger.With("scenario", name)
	logger.Info("Running scenario")

	var (
		capDone   chan captureResult
		cancelCap context.CancelFunc = func() {}
	)
	if r.openSource != nil {
		src, err := r.openSource(name)
		if err != nil {
			return Outcome{}, fmt.Errorf("scenario '%s': failed to open capture: %w", name, err)
		}
		defer src.Close()

		var capCtx context.Context
		capCtx, cancelCap = context.WithCancel(ctx)
		capDone = make(chan captureResult, 1)
		engine := capture.NewEngine(name, r.window, capture.WithLogger(r.logger))
		go func() {
			rec, err := engine.Run(capCtx, src)
			capDone <- captureResult{rec, err}
		}()
	}
	defer cancelCap()

	if err := r.clk.Sleep(ctx, r.startupDelay); err != nil {
		cancelCap()
		r.awaitCapture(capDone)
		return Outcome{}, err
	}

	rep, err := r.gen.Run(ctx, sc)
	if err != nil {
		cancelCap()
		r.awaitCapture(capDone)
		logger.Error("Scenario failed", "error", err)
		return Outcome{}, err
	}

	var rec analysis.StatsRecord
	if capDone == nil {
		rec = analysis.Reduce(name, nil)
	} else {
		res := <-capDone
		if res.err != nil {
			return Outcome{}, fmt.Errorf("scenario '%s': %w", name, res.err)
		}
		rec = res.rec
	}
	rec = rec.Merge(rep.Usage)

	path, err := r.store.Save(rec)
	if err != nil {
		return Outcome{}, fmt.Errorf("scenario '%s': %w", name, err)
	}
	logger.Info("Scenario complete", "results", path, "throughput_bps", rec.ThroughputBps, "latency_samples", len(rec.LatencySamples))
	return Outcome{Scenario: name, Record: rec, Path: path}, nil
}

func (r *Runner) awaitCapture(done chan captureResult) {
	if done != nil {
		<-done
	}
}

// RunAll runs the selected scenarios in order. The baseline is always
// included. A failing scenario does not stop the others; the returned
// error joins every failure. The summary file covers the successful
// scenarios.
func (r *Runner) RunAll(ctx context.Context, requested []string) ([]Outcome, error) {
	names, err := r.catalogue.Select(requested)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Running experiment", "scenarios", names)

	var (
		outcomes []Outcome
		errs     []error
	)
	for _, name := range names {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("scenario '%s': %w", name, ctx.Err()))
			continue
		}
		out, err := r.RunScenario(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		outcomes = append(outcomes, out)
	}

	if len(outcomes) > 0 {
		records := make([]analysis.StatsRecord, 0, len(outcomes))
		for _, o := range outcomes {
			records = append(records, o.Record)
		}
		if _, err := r.store.SaveSummary(records); err != nil {
			errs = append(errs, err)
		}
	}
	return outcomes, errors.Join(errs...)
}

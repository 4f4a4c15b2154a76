package experiment

import (
	"github.com/gocircum/obfsmeter/core/config"
	"github.com/gocircum/obfsmeter/core/generator"
	"github.com/gocircum/obfsmeter/core/results"
	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/gocircum/obfsmeter/pkg/logging"
	"github.com/gocircum/obfsmeter/pkg/securerandom"
)

// Setup assembles a Runner and its Environment from cfg. Options are
// applied after the ones derived from cfg. The caller must Close the
// environment.
func Setup(cfg *config.Config, clk clock.Clock, rnd securerandom.Source, logger logging.Logger, opts ...Option) (*Runner, *Environment, error) {
	cat, err := NewCatalogue(cfg, clk, rnd)
	if err != nil {
		return nil, nil, err
	}
	genCfg, err := cfg.GeneratorSettings()
	if err != nil {
		return nil, nil, err
	}
	store, err := results.NewStore(cfg.Experiment.ResultsDir)
	if err != nil {
		return nil, nil, err
	}

	env, err := NewEnvironment(cfg, clk, rnd, logger)
	if err != nil {
		return nil, nil, err
	}
	gen, err := generator.New(genCfg, env.Sender, env.Resolver, generator.WithClock(clk), generator.WithLogger(logger))
	if err != nil {
		env.Close()
		return nil, nil, err
	}

	base := []Option{
		WithWindow(cfg.Experiment.Duration),
		WithStartupDelay(cfg.Experiment.StartupDelay),
		WithClock(clk),
		WithLogger(logger),
	}
	return NewRunner(cat, gen, env.OpenSource, store, append(base, opts...)...), env, nil
}

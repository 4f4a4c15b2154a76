package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gocircum/obfsmeter/core/capture"
	"github.com/gocircum/obfsmeter/core/config"
	"github.com/gocircum/obfsmeter/core/experiment"
	"github.com/gocircum/obfsmeter/core/results"
	"github.com/gocircum/obfsmeter/pkg/clock"
	"github.com/gocircum/obfsmeter/pkg/logging"
	"github.com/gocircum/obfsmeter/pkg/securerandom"
)

const usage = "expected 'run', 'analyze' or 'report' subcommands"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCmd := flag.NewFlagSet("run", flag.ExitOnError)
		configFile := runCmd.String("config", "experiment.yaml", "Path to the experiment YAML file.")
		methods := runCmd.String("methods", "", "Scenarios to run: 'all' or a comma-separated subset. Overrides the config file.")
		duration := runCmd.Duration("duration", 0, "Capture window per scenario. Overrides the config file.")
		resultsDir := runCmd.String("results", "", "Directory for result files. Overrides the config file.")
		simulate := runCmd.Bool("simulate", false, "Run on the in-memory network instead of a real interface.")
		logLevel, logFormat := logFlags(runCmd)
		if err := runCmd.Parse(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		overrides := runOverrides{methods: *methods, duration: *duration, resultsDir: *resultsDir, simulate: *simulate}
		os.Exit(runExperiment(*configFile, overrides, *logLevel, *logFormat))

	case "analyze":
		analyzeCmd := flag.NewFlagSet("analyze", flag.ExitOnError)
		pcapFile := analyzeCmd.String("pcap", "", "Capture file to reduce (pcap or pcapng).")
		scenarioName := analyzeCmd.String("scenario", "baseline", "Scenario name recorded in the result.")
		resultsDir := analyzeCmd.String("results", ".", "Directory for the result file.")
		logLevel, logFormat := logFlags(analyzeCmd)
		if err := analyzeCmd.Parse(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		initLogging(*logLevel, *logFormat, config.LoggingConfig{})
		os.Exit(analyzeCapture(*pcapFile, *scenarioName, *resultsDir))

	case "report":
		reportCmd := flag.NewFlagSet("report", flag.ExitOnError)
		resultsDir := reportCmd.String("results", ".", "Directory holding result files.")
		logLevel, logFormat := logFlags(reportCmd)
		if err := reportCmd.Parse(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		initLogging(*logLevel, *logFormat, config.LoggingConfig{})
		os.Exit(report(*resultsDir))

	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
}

func logFlags(fs *flag.FlagSet) (*string, *string) {
	level := fs.String("log-level", "", "Log level (debug, info, warn, error). Defaults to the config file or info.")
	format := fs.String("log-format", "", "Log format (console, json). Defaults to the config file or console.")
	return level, format
}

// initLogging gives flags precedence over the config file.
func initLogging(level, format string, fromConfig config.LoggingConfig) {
	if level == "" {
		level = fromConfig.Level
	}
	if level == "" {
		level = "info"
	}
	if format == "" {
		format = fromConfig.Format
	}
	if format == "" {
		format = "console"
	}
	logging.InitLogger(level, format, nil)
}

// runOverrides holds the 'run' flags that replace config file values.
type runOverrides struct {
	methods    string
	duration   time.Duration
	resultsDir string
	simulate   bool
}

// loadRunConfig reads the config file, applies the flag overrides and
// validates the result once.
func loadRunConfig(configFile string, o runOverrides) (*config.Config, error) {
	cfg, err := config.ReadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if o.methods != "" {
		cfg.Scenarios = strings.Split(o.methods, ",")
	}
	if o.duration > 0 {
		cfg.Experiment.Duration = o.duration
	}
	if o.resultsDir != "" {
		cfg.Experiment.ResultsDir = o.resultsDir
	}
	if o.simulate {
		cfg.Experiment.Medium = config.MediumSimulated
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runExperiment(configFile string, o runOverrides, logLevel, logFormat string) int {
	cfg, err := loadRunConfig(configFile, o)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	initLogging(logLevel, logFormat, cfg.Logging)
	logger := logging.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, env, err := experiment.Setup(cfg, clock.System(), securerandom.Crypto(), logger)
	if err != nil {
		logger.Error("Failed to set up experiment", "error", err)
		return 1
	}
	defer env.Close()

	outcomes, runErr := runner.RunAll(ctx, cfg.Scenarios)
	if len(outcomes) > 0 {
		logger.Info("Experiment finished", "scenarios", len(outcomes), "results_dir", cfg.Experiment.ResultsDir)
		if code := report(cfg.Experiment.ResultsDir); code != 0 {
			return code
		}
	}
	if runErr != nil {
		logger.Error("Some scenarios failed", "error", runErr)
		if errors.Is(runErr, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}

func analyzeCapture(pcapFile, scenarioName, resultsDir string) int {
	logger := logging.GetLogger()
	if pcapFile == "" {
		logger.Error("A capture file is required (-pcap)")
		return 1
	}
	src, err := capture.OpenPcapFile(pcapFile)
	if err != nil {
		logger.Error("Failed to open capture", "error", err)
		return 1
	}
	defer src.Close()

	rec, err := capture.NewEngine(scenarioName, 0, capture.WithLogger(logger)).Run(context.Background(), src)
	if err != nil {
		logger.Error("Failed to analyze capture", "error", err)
		return 1
	}
	store, err := results.NewStore(resultsDir)
	if err != nil {
		logger.Error("Failed to open results directory", "error", err)
		return 1
	}
	path, err := store.Save(rec)
	if err != nil {
		logger.Error("Failed to save results", "error", err)
		return 1
	}
	logger.Info("Capture analyzed", "results", path)
	return report(resultsDir)
}

func report(resultsDir string) int {
	logger := logging.GetLogger()
	store, err := results.NewStore(resultsDir)
	if err != nil {
		logger.Error("Failed to open results directory", "error", err)
		return 1
	}
	records, err := store.LoadAll()
	if err != nil {
		logger.Error("Failed to load results", "error", err)
		return 1
	}
	if len(records) == 0 {
		logger.Warn("No results found", "dir", resultsDir)
		return 0
	}
	if err := results.WriteTable(os.Stdout, records); err != nil {
		logger.Error("Failed to write report", "error", err)
		return 1
	}
	return 0
}

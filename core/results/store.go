// Package results persists reduced statistics, one JSON document per
// scenario, plus an experiment-wide summary.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocircum/obfsmeter/core/analysis"
)

const (
	filePrefix = "results_"
	fileSuffix = ".json"
	// SummaryFile is the name of the experiment-wide summary.
	SummaryFile = "experiment_results.json"
)

// Summary is the per-scenario comparison published in SummaryFile.
type Summary struct {
	AvgLatencyMs    *float64 `json:"avg_latency_ms"`
	JitterMs        *float64 `json:"jitter_ms"`
	ThroughputBps   int64    `json:"throughput_bps"`
	CPUUsagePercent float64  `json:"cpu_usage_percent"`
}

// Summarize extracts the comparison metrics of a record.
func Summarize(r analysis.StatsRecord) Summary {
	return Summary{
		AvgLatencyMs:    r.AvgLatencyMs,
		JitterMs:        r.JitterMs,
		ThroughputBps:   r.ThroughputBps,
		CPUUsagePercent: r.CPUUsagePercent,
	}
}

// Store reads and writes result files in a directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file a scenario's record is stored in.
func (s *Store) Path(scenario string) string {
	return filepath.Join(s.dir, filePrefix+scenario+fileSuffix)
}

// Save writes r to its scenario file, replacing any previous run.
func (s *Store) Save(r analysis.StatsRecord) (string, error) {
	if r.Scenario == "" {
		return "", errors.New("record has no scenario name")
	}
	path := s.Path(r.Scenario)
	if err := writeJSON(path, r); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads the record of one scenario.
func (s *Store) Load(scenario string) (analysis.StatsRecord, error) {
	var r analysis.StatsRecord
	data, err := os.ReadFile(s.Path(scenario))
	if err != nil {
		return r, fmt.Errorf("failed to read results for '%s': %w", scenario, err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to parse results for '%s': %w", scenario, err)
	}
	if r.Scenario == "" {
		r.Scenario = scenario
	}
	return r, nil
}

// LoadAll reads every scenario file in the directory, sorted by scenario
// name.
func (s *Store) LoadAll() ([]analysis.StatsRecord, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileSuffix))
	}
	sort.Strings(names)

	out := make([]analysis.StatsRecord, 0, len(names))
	for _, name := range names {
		r, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// SaveSummary writes the experiment summary keyed by scenario name.
func (s *Store) SaveSummary(records []analysis.StatsRecord) (string, error) {
	summary := make(map[string]Summary, len(records))
	for _, r := range records {
		summary[r.Scenario] = Summarize(r)
	}
	path := filepath.Join(s.dir, SummaryFile)
	if err := writeJSON(path, summary); err != nil {
		return "", err
	}
	return path, nil
}

// LoadSummary reads the experiment summary.
func (s *Store) LoadSummary() (map[string]Summary, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, SummaryFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	var summary map[string]Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return summary, nil
}

// writeJSON writes v through a temporary file so readers never see a
// partial document.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

package results

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocircum/obfsmeter/core/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestSaveWritesScenarioFile(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	rec := analysis.StatsRecord{
		Scenario:        "padding",
		ThroughputBps:   1600,
		AvgLatencyMs:    ptr(1.5),
		CPUUsagePercent: 12.5,
		PacketSizes:     []int{100, 100},
		LatencySamples:  []float64{1.5},
	}
	path, err := s.Save(rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "results_padding.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 1.5, raw["avg_latency_ms"])
	assert.Nil(t, raw["jitter_ms"])
	assert.Equal(t, float64(1600), raw["throughput_bps"])
	assert.Equal(t, 12.5, raw["cpu_usage_percent"])

	got, err := s.Load("padding")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestSaveRequiresScenario(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Save(analysis.StatsRecord{})
	assert.Error(t, err)
}

func TestLoadAllSorted(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	for _, name := range []string{"shaping", "baseline", "encryption"} {
		_, err := s.Save(analysis.StatsRecord{Scenario: name})
		require.NoError(t, err)
	}
	_, err = s.SaveSummary(nil)
	require.NoError(t, err)

	all, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "baseline", all[0].Scenario)
	assert.Equal(t, "encryption", all[1].Scenario)
	assert.Equal(t, "shaping", all[2].Scenario)
}

func TestLoadMissing(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Load("baseline")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSummaryRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	records := []analysis.StatsRecord{
		{Scenario: "baseline", AvgLatencyMs: ptr(0.4), JitterMs: ptr(0.1), ThroughputBps: 8000000, CPUUsagePercent: 90},
		{Scenario: "shaping", ThroughputBps: 120000, CPUUsagePercent: 3},
	}
	path, err := s.SaveSummary(records)
	require.NoError(t, err)
	assert.Equal(t, SummaryFile, filepath.Base(path))

	summary, err := s.LoadSummary()
	require.NoError(t, err)
	require.Contains(t, summary, "baseline")
	assert.Equal(t, 0.4, *summary["baseline"].AvgLatencyMs)
	assert.Nil(t, summary["shaping"].JitterMs)
	assert.Equal(t, int64(120000), summary["shaping"].ThroughputBps)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, []analysis.StatsRecord{
		{Scenario: "baseline", AvgLatencyMs: ptr(0.5), JitterMs: ptr(0.25), ThroughputBps: 2500000, CPUUsagePercent: 40},
		{Scenario: "shaping"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SCENARIO"))
	assert.Contains(t, lines[1], "0.500")
	assert.Contains(t, lines[1], "2.500")
	assert.Contains(t, lines[2], "N/A")
}

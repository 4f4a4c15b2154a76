package results

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/gocircum/obfsmeter/core/analysis"
)

// WriteTable prints a comparison of records. Missing latency and jitter
// values print as N/A.
func WriteTable(w io.Writer, records []analysis.StatsRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tLATENCY (ms)\tJITTER (ms)\tTHROUGHPUT (Mbps)\tCPU (%)\tPACKETS\tUNMATCHED\tDROPPED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%.1f\t%d\t%d\t%d\n",
			r.Scenario,
			optional(r.AvgLatencyMs),
			optional(r.JitterMs),
			float64(r.ThroughputBps)/1e6,
			r.CPUUsagePercent,
			r.PacketCount,
			r.UnmatchedProbes,
			r.DroppedPackets,
		)
	}
	return tw.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

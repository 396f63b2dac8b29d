package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Format renders the report for terminal display.
func (r Report) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Queries:        %d\n", r.TotalQueries)
	if r.TotalQueries == 0 {
		return b.String()
	}

	fmt.Fprintf(&b, "Success rate:   %.0f%% (%d/%d)\n", r.SuccessRate*100, r.Successes, r.TotalQueries)
	fmt.Fprintf(&b, "Cache hit rate: %.0f%% (%d/%d)\n", r.CacheHitRate*100, r.CacheHits, r.TotalQueries)
	fmt.Fprintf(&b, "Pooled share:   %.0f%% (%d/%d)\n", r.PooledShare*100, r.PooledRuns, r.TotalQueries)
	fmt.Fprintf(&b, "Duration:       avg %s, p50 %s, p95 %s\n", r.AvgDuration.Round(10*time.Millisecond), r.P50Duration.Round(10*time.Millisecond), r.P95Duration.Round(10*time.Millisecond))

	if len(r.ErrorKinds) > 0 {
		kinds := make([]string, 0, len(r.ErrorKinds))
		for kind := range r.ErrorKinds {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)

		b.WriteString("Errors:\n")
		for _, kind := range kinds {
			fmt.Fprintf(&b, "  %-16s %d\n", kind, r.ErrorKinds[kind])
		}
	}
	return b.String()
}

// Summary renders a single status line.
func (r *Recorder) Summary() string {
	report := r.Report()
	if report.TotalQueries == 0 {
		return "no queries recorded"
	}
	return fmt.Sprintf("%d queries, %.0f%% ok, %.0f%% cached, p95 %s",
		report.TotalQueries,
		report.SuccessRate*100,
		report.CacheHitRate*100,
		report.P95Duration.Round(10*time.Millisecond),
	)
}

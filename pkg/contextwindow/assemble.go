package contextwindow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/metricsstore"
)

// DefaultActivityFreshness is used when AssemblePrompt is called without
// an explicit freshness override.
const DefaultActivityFreshness = 10 * time.Minute

// PromptInput carries the pieces outside the rolling buffer proper that
// still belong in an assembled prompt (spec.md §4.2): the current system
// header, the most recent activity report, and a reference to the
// Metrics Store for the trailing 15-minute table.
type PromptInput struct {
	SystemHeader    string
	LatestActivity  *domain.ActivityReport
	ActivityMaxAge  time.Duration
	MetricsHost     string
	MetricsNames    []string
	MetricsReader   metricsstore.Adapter
	MetricsReaderOK bool // false disables the metrics table (e.g. no store configured)
}

// AssemblePrompt builds the reasoner prompt per spec.md §4.2: SystemHeader,
// recent-metrics table, fresh ActivityReport, then window entries
// newest-first until budget B is reached. The result's token count is
// guaranteed <= budget.
func (w *Window) AssemblePrompt(ctx context.Context, budget int, in PromptInput) (string, error) {
	var sections []string
	used := 0

	if in.SystemHeader != "" {
		sections = append(sections, in.SystemHeader)
		used += w.counter(in.SystemHeader)
	}

	if in.MetricsReaderOK && in.MetricsReader != nil {
		table, err := renderMetricsTable(ctx, in.MetricsReader, in.MetricsHost, in.MetricsNames)
		if err == nil && table != "" {
			tokens := w.counter(table)
			if used+tokens <= budget {
				sections = append(sections, table)
				used += tokens
			}
		}
	}

	if in.LatestActivity != nil && !in.LatestActivity.Unavailable {
		maxAge := in.ActivityMaxAge
		if maxAge <= 0 {
			maxAge = DefaultActivityFreshness
		}
		if time.Since(in.LatestActivity.Timestamp) <= maxAge {
			rendered := renderActivityReport(*in.LatestActivity)
			tokens := w.counter(rendered)
			if used+tokens <= budget {
				sections = append(sections, rendered)
				used += tokens
			}
		}
	}

	snapshot := w.Snapshot()
	for i := len(snapshot) - 1; i >= 0; i-- {
		e := snapshot[i]
		if used+e.TokenCount > budget {
			continue
		}
		sections = append(sections, e.Text)
		used += e.TokenCount
	}

	return strings.Join(sections, "\n\n"), nil
}

func renderMetricsTable(ctx context.Context, reader metricsstore.Adapter, host string, names []string) (string, error) {
	now := time.Now()
	from := now.Add(-15 * time.Minute)

	var sb strings.Builder
	sb.WriteString("<!-- RECENT_METRICS_START -->\n### Recent metrics (last 15m, 1m resolution)\n\n")
	wrote := false

	for _, name := range names {
		points, err := reader.Aggregate(ctx, name, host, from, now, time.Minute, domain.AggregateAvg)
		if err != nil {
			return "", fmt.Errorf("aggregate %s: %w", name, err)
		}
		if len(points) == 0 {
			continue
		}
		wrote = true
		sb.WriteString(fmt.Sprintf("%s:", name))
		for _, p := range points {
			sb.WriteString(fmt.Sprintf(" %.1f@%s", p.Value, p.Timestamp.Format("15:04")))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("<!-- RECENT_METRICS_END -->")

	if !wrote {
		return "", nil
	}
	return sb.String(), nil
}

func renderActivityReport(r domain.ActivityReport) string {
	return fmt.Sprintf(
		"<!-- ACTIVITY_REPORT_START -->\n### Activity (as of %s)\n\ncpu=%.1f%% mem=%.1f%% io=%s net=%s\n<!-- ACTIVITY_REPORT_END -->",
		r.Timestamp.Format(time.RFC3339), r.CPUPercent, r.MemPercent, r.IOStats, r.NetStats)
}

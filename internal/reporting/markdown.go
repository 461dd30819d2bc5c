package reporting

import (
	"math/big"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"killboard-stats/internal/metrics"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	p := message.NewPrinter(language.English)

	// Header
	sb.WriteString("# Group Stats\n\n")
	p.Fprintf(&sb, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))
	p.Fprintf(&sb, "Report: %s | Window: %s to %s | Granularity: %s\n\n",
		r.Strategy, r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339), r.Granularity)
	if r.RunID != "" {
		p.Fprintf(&sb, "Snapshot run: `%s`\n\n", r.RunID)
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	p.Fprintf(&sb, "| Groups | %d |\n", r.Summary.GroupCount)
	p.Fprintf(&sb, "| Total (sum over groups) | %d |\n", r.Summary.GrandTotalCount)
	p.Fprintf(&sb, "| Distinct killmails | %d |\n", r.Summary.GrandUniqueFactCount)
	p.Fprintf(&sb, "| Total ISK | %s (%s) |\n", metrics.FormatValue(r.Summary.GrandTotalValue), groupDigits(r.Summary.GrandTotalValue))
	top := r.Summary.TopPerformer
	if top == "" {
		top = "n/a"
	}
	p.Fprintf(&sb, "| Top performer (by %s) | %s |\n", r.Summary.TopMetric, top)
	sb.WriteString("\n")

	// Groups
	sb.WriteString("## Groups\n\n")
	if len(r.Groups) > 0 {
		sb.WriteString("| Group | Count | Solo | Group Solo | High Value | ISK | Trend | Active Buckets |\n")
		sb.WriteString("|-------|-------|------|------------|------------|-----|-------|----------------|\n")
		for _, g := range r.Groups {
			p.Fprintf(&sb, "| %s | %d | %d | %d | %d | %s | %s | %d |\n",
				g.DisplayName, g.UniqueFacts, g.Solo, g.GroupSolo, g.HighValue,
				metrics.FormatValue(g.TotalValue), g.Trend, g.BucketsWithAny)
		}
		sb.WriteString("\n")
		for _, g := range r.Groups {
			if g.Summary != "" {
				p.Fprintf(&sb, "- **%s**: %s\n", g.DisplayName, g.Summary)
			}
		}
	} else {
		sb.WriteString("No groups.\n")
	}
	sb.WriteString("\n")

	// Breakdown
	sb.WriteString("## Top Dimensions\n\n")
	if len(r.Breakdown) > 0 {
		sb.WriteString("| Group | Dimension | Count | ISK |\n")
		sb.WriteString("|-------|-----------|-------|-----|\n")
		for _, b := range r.Breakdown {
			p.Fprintf(&sb, "| %s | %s | %d | %s |\n", b.GroupID, b.Dimension, b.Count, metrics.FormatValue(b.Value))
		}
	} else {
		sb.WriteString("No dimension data available.\n")
	}
	sb.WriteString("\n")

	// Warnings
	sb.WriteString("## Data Warnings\n\n")
	if len(r.Warnings) > 0 {
		for _, w := range r.Warnings {
			p.Fprintf(&sb, "- `%s` killmail %s: %s\n", w.Code, w.FactKey, w.Detail)
		}
	} else {
		sb.WriteString("None.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// groupDigits renders v with comma thousands separators.
func groupDigits(v *big.Int) string {
	if v == nil {
		return "0"
	}
	s := v.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders per-group totals as CSV string.
func RenderCSV(groups []GroupRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("group_id,display_name,unique_facts,solo,group_solo,high_value,")
	sb.WriteString("total_value,trend\n")

	// Rows
	for _, g := range groups {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%s,%s\n",
			csvField(g.GroupID),
			csvField(g.DisplayName),
			g.UniqueFacts,
			g.Solo,
			g.GroupSolo,
			g.HighValue,
			valueString(g.TotalValue),
			g.Trend,
		))
	}

	return sb.String()
}

// RenderSeriesCSV renders the time series as CSV string.
func RenderSeriesCSV(series []SeriesRow) string {
	var sb strings.Builder

	sb.WriteString("group_id,bucket_start,count,value\n")
	for _, s := range series {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s\n",
			csvField(s.GroupID),
			s.BucketStart.UTC().Format(time.RFC3339),
			s.Count,
			valueString(s.Value),
		))
	}

	return sb.String()
}

func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Package httpapi exposes stats over HTTP with fiber.
package httpapi

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/fetch"
	"killboard-stats/internal/metrics"
	"killboard-stats/internal/stats"
)

// StatsComputer is implemented by *stats.Service.
type StatsComputer interface {
	Compute(ctx context.Context, q stats.Query) (*stats.Report, error)
}

// StatsHandler serves the stats endpoint over a StatsComputer.
type StatsHandler struct {
	svc StatsComputer
}

// NewStatsHandler creates a StatsHandler backed by svc.
func NewStatsHandler(svc StatsComputer) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// GetStats answers GET /stats.
//
// Query: groups (comma separated ids, empty for all), from and to (unix
// seconds, required), granularity (hour|day|week, default day),
// report (kills|losses|activity), top (value|count|solo), persist (bool).
func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	fromStr := c.Query("from", "")
	toStr := c.Query("to", "")
	if fromStr == "" || toStr == "" {
		return badRequest(c, "from and to are required")
	}

	from, err := strconv.ParseInt(fromStr, 10, 64)
	if err != nil {
		return badRequest(c, "invalid 'from' parameter")
	}
	to, err := strconv.ParseInt(toStr, 10, 64)
	if err != nil {
		return badRequest(c, "invalid 'to' parameter")
	}

	q := stats.Query{
		GroupIDs:    splitList(c.Query("groups", "")),
		Start:       time.Unix(from, 0).UTC(),
		End:         time.Unix(to, 0).UTC(),
		Granularity: domain.Granularity(strings.ToLower(c.Query("granularity", string(domain.GranularityDay)))),
		Report:      c.Query("report", ""),
		TopMetric:   domain.TopMetric(strings.ToLower(c.Query("top", ""))),
		Persist:     c.QueryBool("persist", false),
	}

	report, err := h.svc.Compute(c.UserContext(), q)
	if err != nil {
		switch {
		case errors.Is(err, fetch.ErrUnknownGroup):
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Error:   "unknown_group",
				Message: err.Error(),
			})
		case stats.IsInvalidQuery(err):
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_query",
				Message: err.Error(),
			})
		default:
			return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
				Error: "internal_server_error",
			})
		}
	}

	return c.Status(http.StatusOK).JSON(toResponse(report, from, to))
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
		Error:   "invalid_query",
		Message: msg,
	})
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toResponse(r *stats.Report, from, to int64) StatsResponse {
	res := r.Result
	resp := StatsResponse{
		Report:      r.Strategy,
		From:        from,
		To:          to,
		Granularity: string(res.Granularity),
		Cached:      r.Cached,
		RunID:       r.RunID,
		Groups:      make([]GroupResponse, 0, len(res.Groups)),
		Summary: SummaryResponse{
			GrandTotalCount:      res.Summary.GrandTotalCount,
			GrandUniqueFactCount: res.Summary.GrandUniqueFactCount,
			GrandTotalValue:      intString(res.Summary.GrandTotalValue),
			GrandTotalValueText:  metrics.FormatValue(res.Summary.GrandTotalValue),
			TopPerformer:         res.Summary.TopPerformerGroupID,
			TopMetric:            string(res.Summary.TopPerformerMetric),
		},
	}

	for _, g := range res.Groups {
		gr := GroupResponse{
			GroupID:        g.GroupID,
			DisplayName:    g.DisplayName,
			UniqueCount:    g.UniqueFactCount,
			SoloCount:      g.SoloCount,
			GroupSoloCount: g.GroupSoloCount,
			HighValueCount: g.HighValueCount,
			TotalValue:     intString(g.TotalValue),
			TotalValueText: metrics.FormatValue(g.TotalValue),
			Trend:          string(g.Trend),
			Summary:        r.Summaries[g.GroupID],
			TimeSeries:     make([]SeriesPointResponse, 0, len(g.TimeSeries)),
		}
		for _, p := range g.TimeSeries {
			gr.TimeSeries = append(gr.TimeSeries, SeriesPointResponse{
				BucketStart: p.BucketStart.Unix(),
				Count:       p.Count,
				Value:       intString(p.Value),
				ValueFloat:  p.ValueFloat,
				Clamped:     p.ValueClamped,
			})
		}
		for _, d := range g.Breakdown {
			gr.Breakdown = append(gr.Breakdown, DimensionResponse{
				Dimension: d.Dimension,
				Count:     d.Count,
				Value:     intString(d.Value),
			})
		}
		resp.Groups = append(resp.Groups, gr)
	}

	for _, w := range res.Warnings {
		resp.Warnings = append(resp.Warnings, WarningResponse{FactKey: w.FactKey, Code: w.Code, Detail: w.Detail})
	}
	return resp
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

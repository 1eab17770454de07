package http

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"costindex/internal/core"
	"costindex/internal/log"
)

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	basketID, err := RequiredQuery(r, "basketId")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	d, err := s.deps.Dashboards.Compute(r.Context(), basketID)
	if err != nil {
		s.writeError(w, r, err, log.ComponentDashboard, log.OpRender)
		return
	}

	var buf bytes.Buffer
	if err := renderTimeline(&buf, d.Basket.Name, d.Timeline); err != nil {
		s.writeError(w, r, err, log.ComponentDashboard, log.OpRender)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// timelineChart plots the personal and national index over time.
func timelineChart(title string, timeline []core.TimelinePoint) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title + " - cost of living",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Personal vs national index",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Bottom: "0"}),
	)

	dates := make([]string, len(timeline))
	personal := make([]opts.LineData, len(timeline))
	national := make([]opts.LineData, len(timeline))
	for i, p := range timeline {
		dates[i] = p.Date.String()
		personal[i] = opts.LineData{Value: p.Personal}
		national[i] = opts.LineData{Value: p.National}
	}

	line.SetXAxis(dates).
		AddSeries("Personal", personal).
		AddSeries("National", national)
	return line
}

func renderTimeline(w io.Writer, title string, timeline []core.TimelinePoint) error {
	return timelineChart(title, timeline).Render(w)
}

package outwriter

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/huangsam/issuetrend/schema"
)

const (
	chartHeight = "420px"
	lineWidth   = 2
	fullZoomPct = 100
)

// WriteChart writes a self-contained HTML page with one line chart per repository.
func WriteChart(series []schema.Series, path string) error {
	return writeWithFile(path, func(w io.Writer) error {
		return renderChartPage(w, series)
	}, "Wrote chart")
}

func renderChartPage(w io.Writer, series []schema.Series) error {
	page := components.NewPage()
	page.PageTitle = "issuetrend"
	for _, s := range series {
		page.AddCharts(newSeriesChart(s))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func lineData(values []int) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Value: v}
	}
	return data
}

// newSeriesChart plots the issue, pull request and total lines of one repository.
func newSeriesChart(s schema.Series) *charts.Line {
	subtitle := "Open items per day"
	if s.Label != "" {
		subtitle = fmt.Sprintf("Open items labeled %q per day", s.Label)
	}
	if s.Len() == 0 {
		subtitle = "No data"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: s.Repo.String(), Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "5px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: fullZoomPct}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Day"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Open"}),
	)
	line.SetXAxis(s.Days)

	style := charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth})
	line.AddSeries("Issues", lineData(s.Issues), style)
	line.AddSeries("Pull requests", lineData(s.PRs), style)
	line.AddSeries("Total", lineData(s.Total), style)
	return line
}

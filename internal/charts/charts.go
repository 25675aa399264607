// Package charts renders report data with go-echarts
package charts

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Point is one slice of a pie chart
type Point struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// DataRow is one category of a Dataset
type DataRow struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// Dataset is a table with a category column followed by one numeric column
// per series
type Dataset struct {
	Columns []string
	Rows    []DataRow
}

// Series returns the names of the numeric columns
func (d Dataset) Series() []string {
	if len(d.Columns) < 2 {
		return nil
	}
	return d.Columns[1:]
}

// Labels returns the category of every row
func (d Dataset) Labels() []string {
	out := make([]string, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r.Label
	}
	return out
}

func (d Dataset) column(i int) []float64 {
	out := make([]float64, len(d.Rows))
	for j, r := range d.Rows {
		if i < len(r.Values) {
			out[j] = r.Values[i]
		}
	}
	return out
}

// Defaults for the axis charts
const (
	DefaultAreaTitle = "Wait Times"
	DefaultTitle     = "Pushes"
	DefaultWidth     = 800
	DefaultHeight    = 300
	PieWidth         = 900
	PieHeight        = 500
)

const stackName = "total"

// SortPoints returns a copy of points ordered by descending value. Points
// with equal values keep their order
func SortPoints(points []Point) []Point {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})
	return sorted
}

// RenderPie draws points as a single series pie chart
func RenderPie(w io.Writer, points []Point, title string) error {
	sorted := SortPoints(points)

	data := make([]opts.PieData, 0, len(sorted))
	for _, p := range sorted {
		data = append(data, opts.PieData{Name: p.Name, Value: p.Value})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     px(PieWidth),
			Height:    px(PieHeight),
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      opts.Bool(true),
			Trigger:   "item",
			Formatter: "{b}: {c}%",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show:   opts.Bool(true),
			Right:  "10",
			Orient: "vertical",
			Type:   "scroll",
		}),
	)
	pie.AddSeries("Run Time", data).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
			charts.WithPieChartOpts(opts.PieChart{
				Radius: []string{"0%", "75%"},
				Center: []string{"40%", "50%"},
			}),
		)

	if err := pie.Render(w); err != nil {
		return fmt.Errorf("failed to render pie chart: %w", err)
	}
	return nil
}

// RenderArea draws data as an area chart
func RenderArea(w io.Writer, data Dataset, stacked bool, title string, width, height int) error {
	line := newLine(data, stacked, orDefault(title, DefaultAreaTitle), orInt(width, DefaultWidth), orInt(height, DefaultHeight))
	line.SetSeriesOptions(charts.WithAreaStyleOpts(opts.AreaStyle{}))
	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render area chart: %w", err)
	}
	return nil
}

// RenderLine draws data as a line chart
func RenderLine(w io.Writer, data Dataset, stacked bool, title string, width, height int) error {
	line := newLine(data, stacked, orDefault(title, DefaultTitle), orInt(width, DefaultWidth), orInt(height, DefaultHeight))
	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render line chart: %w", err)
	}
	return nil
}

// RenderColumn draws data as vertical bars
func RenderColumn(w io.Writer, data Dataset, stacked bool, title string, width, height int) error {
	bar := newBar(data, stacked, orDefault(title, DefaultTitle), orInt(width, DefaultWidth), orInt(height, DefaultHeight))
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render column chart: %w", err)
	}
	return nil
}

// RenderBar draws data as horizontal bars. Its default size is the column
// chart's turned on its side
func RenderBar(w io.Writer, data Dataset, stacked bool, title string, width, height int) error {
	bar := newBar(data, stacked, orDefault(title, DefaultTitle), orInt(width, DefaultHeight), orInt(height, DefaultWidth))
	bar.XYReversal()
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render bar chart: %w", err)
	}
	return nil
}

func globalOpts(title string, width, height int) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     px(width),
			Height:    px(height),
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "30",
		}),
	}
}

func newLine(data Dataset, stacked bool, title string, width, height int) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(globalOpts(title, width, height)...)
	line.SetXAxis(data.Labels())

	for i, name := range data.Series() {
		values := data.column(i)
		points := make([]opts.LineData, len(values))
		for j, v := range values {
			points[j] = opts.LineData{Value: v}
		}
		var seriesOpts []charts.SeriesOpts
		if stacked {
			seriesOpts = append(seriesOpts, charts.WithLineChartOpts(opts.LineChart{Stack: stackName}))
		}
		line.AddSeries(name, points, seriesOpts...)
	}
	return line
}

func newBar(data Dataset, stacked bool, title string, width, height int) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts(title, width, height)...)
	bar.SetXAxis(data.Labels())

	for i, name := range data.Series() {
		values := data.column(i)
		points := make([]opts.BarData, len(values))
		for j, v := range values {
			points[j] = opts.BarData{Value: v}
		}
		var seriesOpts []charts.SeriesOpts
		if stacked {
			seriesOpts = append(seriesOpts, charts.WithBarChartOpts(opts.BarChart{Stack: stackName}))
		}
		bar.AddSeries(name, points, seriesOpts...)
	}
	return bar
}

func px(n int) string {
	return fmt.Sprintf("%dpx", n)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

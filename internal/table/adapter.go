// Package table applies report filters to a tabular view and keeps its
// percentage column relative to the rows currently displayed
package table

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aparcar/buildboard/internal/charts"
	"github.com/aparcar/buildboard/internal/filters"
	"github.com/aparcar/buildboard/internal/logging"
)

// Columns maps filters and derived values to column positions
type Columns struct {
	// Filters maps a filter name to the column it restricts
	Filters map[string]int
	// Label lists the columns joined into a row label
	Label []int
	// Percentage is the derived run time share column
	Percentage int
	// Sum is the run time sum column
	Sum int
}

// DefaultColumns matches the layout of report.Columns
func DefaultColumns() Columns {
	return Columns{
		Filters: map[string]int{
			filters.DetailLevel: 0,
			filters.Platform:    1,
			filters.BuildType:   2,
			filters.JobType:     3,
		},
		Label:      []int{1, 2, 3, 4},
		Percentage: 5,
		Sum:        6,
	}
}

// FilterSource provides the accepted values per filter
type FilterSource interface {
	Names() []string
	GetFilter(name string) []string
}

// RedrawFunc receives the chart data after every ApplyFilters
type RedrawFunc func(points []charts.Point) error

// Options configure an Adapter
type Options struct {
	Columns Columns
	Redraw  RedrawFunc
}

// Adapter drives a Widget from a filter state
type Adapter struct {
	widget  Widget
	cols    Columns
	redraw  RedrawFunc
	invalid int
}

// NewAdapter creates an adapter for w
func NewAdapter(w Widget, opts Options) *Adapter {
	if opts.Columns.Filters == nil {
		opts.Columns = DefaultColumns()
	}
	return &Adapter{
		widget: w,
		cols:   opts.Columns,
		redraw: opts.Redraw,
	}
}

// FilterPattern returns a pattern matching exactly one of values, or the
// empty pattern (no restriction) when values is empty
func FilterPattern(values []string) string {
	if len(values) == 0 {
		return ""
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return "^(?:" + strings.Join(quoted, "|") + ")$"
}

// ApplyFilters applies every filter of src, recomputes the percentage column
// and redraws the chart. A redraw error is returned after the table has been
// updated
func (a *Adapter) ApplyFilters(src FilterSource) error {
	for _, name := range src.Names() {
		if err := a.ApplyFilter(name, src.GetFilter(name)); err != nil {
			return err
		}
	}

	if err := a.UpdatePercentageColumn(); err != nil {
		return err
	}

	if a.redraw == nil {
		return nil
	}
	if err := a.redraw(a.ExtractChartData()); err != nil {
		return fmt.Errorf("failed to redraw chart: %w", err)
	}
	return nil
}

// ApplyFilter restricts the column mapped to name
func (a *Adapter) ApplyFilter(name string, values []string) error {
	col, ok := a.cols.Filters[name]
	if !ok {
		logging.Log.WithField("filter", name).Debug("no column for filter")
		return nil
	}
	if err := a.widget.FilterColumn(col, FilterPattern(values)); err != nil {
		return fmt.Errorf("failed to apply filter %s: %w", name, err)
	}
	return nil
}

// UpdatePercentageColumn sets the percentage of every displayed row to its
// share of the sum over the displayed rows. When that sum is zero every
// displayed row gets 0.00
func (a *Adapter) UpdatePercentageColumn() error {
	rows := a.widget.Data()
	display := a.widget.DisplayIndex()

	sums := make([]float64, len(display))
	var total float64
	for j, i := range display {
		sums[j] = a.number(cell(rows[i], a.cols.Sum))
		total += sums[j]
	}

	for j, i := range display {
		ptg := 0.0
		if total != 0 {
			ptg = sums[j] / total * 100
		}
		if math.IsNaN(ptg) || math.IsInf(ptg, 0) {
			ptg = 0
		}
		if err := a.widget.UpdateCell(i, a.cols.Percentage, FormatPercentage(ptg)); err != nil {
			return fmt.Errorf("failed to update percentage of row %d: %w", i, err)
		}
	}
	return nil
}

// BuildRowLabel joins the label columns of row with single spaces
func (a *Adapter) BuildRowLabel(row []string) string {
	parts := make([]string, len(a.cols.Label))
	for i, col := range a.cols.Label {
		parts[i] = cell(row, col)
	}
	return strings.Join(parts, " ")
}

// ExtractChartData returns a point per displayed row, in display order
func (a *Adapter) ExtractChartData() []charts.Point {
	rows := a.widget.Data()
	display := a.widget.DisplayIndex()

	points := make([]charts.Point, 0, len(display))
	for _, i := range display {
		points = append(points, charts.Point{
			Name:  a.BuildRowLabel(rows[i]),
			Value: a.number(cell(rows[i], a.cols.Percentage)),
		})
	}
	return points
}

// InvalidNumbers returns how many cells could not be parsed as numbers
func (a *Adapter) InvalidNumbers() int {
	return a.invalid
}

func (a *Adapter) number(s string) float64 {
	v, ok := ParseNumberOrDefault(s, 0)
	if !ok {
		a.invalid++
		logging.Log.WithField("value", s).Debug("unparseable numeric cell, using 0")
	}
	return v
}

// ParseNumberOrDefault parses s as a finite number. It returns def and false
// when s is not one
func ParseNumberOrDefault(s string, def float64) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def, false
	}
	return v, true
}

// FormatPercentage rounds v to two decimals
func FormatPercentage(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

package table

import (
	"fmt"
	"regexp"
	"sort"
)

// Widget is the tabular view the adapter drives
type Widget interface {
	// FilterColumn restricts col to cells matching pattern. An empty pattern
	// removes the restriction. The display index is recomputed before it
	// returns
	FilterColumn(col int, pattern string) error
	// DisplayIndex returns the positions of the displayed rows in Data order
	DisplayIndex() []int
	// UpdateCell sets a cell without filtering again
	UpdateCell(row, col int, value string) error
	// Data returns every row
	Data() [][]string
	// FilteredData returns the displayed rows
	FilteredData() [][]string
}

// Grid is an in-memory Widget
type Grid struct {
	columns []string
	rows    [][]string
	filters map[int]*regexp.Regexp
	display []int
}

// NewGrid creates a grid over rows. Rows are copied
func NewGrid(columns []string, rows [][]string) *Grid {
	g := &Grid{
		columns: columns,
		rows:    make([][]string, len(rows)),
		filters: make(map[int]*regexp.Regexp),
	}
	for i, r := range rows {
		g.rows[i] = append([]string(nil), r...)
	}
	g.refilter()
	return g
}

// Columns returns the column headers
func (g *Grid) Columns() []string {
	return g.columns
}

// FilterColumn implements Widget
func (g *Grid) FilterColumn(col int, pattern string) error {
	if pattern == "" {
		delete(g.filters, col)
		g.refilter()
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid filter for column %d: %w", col, err)
	}
	g.filters[col] = re
	g.refilter()
	return nil
}

func (g *Grid) refilter() {
	cols := make([]int, 0, len(g.filters))
	for col := range g.filters {
		cols = append(cols, col)
	}
	sort.Ints(cols)

	g.display = g.display[:0]
	for i, row := range g.rows {
		if g.matches(row, cols) {
			g.display = append(g.display, i)
		}
	}
}

func (g *Grid) matches(row []string, cols []int) bool {
	for _, col := range cols {
		cell := ""
		if col < len(row) {
			cell = row[col]
		}
		if !g.filters[col].MatchString(cell) {
			return false
		}
	}
	return true
}

// DisplayIndex implements Widget
func (g *Grid) DisplayIndex() []int {
	out := make([]int, len(g.display))
	copy(out, g.display)
	return out
}

// UpdateCell implements Widget
func (g *Grid) UpdateCell(row, col int, value string) error {
	if row < 0 || row >= len(g.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	if col < 0 {
		return fmt.Errorf("column %d out of range", col)
	}
	for len(g.rows[row]) <= col {
		g.rows[row] = append(g.rows[row], "")
	}
	g.rows[row][col] = value
	return nil
}

// Data implements Widget
func (g *Grid) Data() [][]string {
	return g.rows
}

// FilteredData implements Widget
func (g *Grid) FilteredData() [][]string {
	out := make([][]string, 0, len(g.display))
	for _, i := range g.display {
		out = append(out, g.rows[i])
	}
	return out
}

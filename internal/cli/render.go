package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/aparcar/buildboard/internal/charts"
)

const (
	maxLabelWidth = 60
	barWidth      = 30
)

type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	num    lipgloss.Style
	bar    lipgloss.Style
	track  lipgloss.Style
	dim    lipgloss.Style
}

// newStyles binds the report styles to the color profile of w
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	cell := r.NewStyle().Padding(0, 1)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		header: cell.Bold(true),
		cell:   cell,
		num:    cell.Align(lipgloss.Right),
		bar:    r.NewStyle().Foreground(lipgloss.Color("10")),
		track:  r.NewStyle().Foreground(lipgloss.Color("8")),
		dim:    r.NewStyle().Faint(true),
	}
}

// renderTable draws rows under header. Columns listed in numeric are right
// aligned
func (s styles) renderTable(header []string, rows [][]string, numeric map[int]bool) string {
	if len(rows) == 0 {
		return s.dim.Render("no builders match the filters")
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return s.header
			case numeric[col]:
				return s.num
			default:
				return s.cell
			}
		}).
		Render()
}

// renderPoints draws one horizontal bar per chart point, scaled to 100%
func (s styles) renderPoints(points []charts.Point) string {
	if len(points) == 0 {
		return s.dim.Render("no data")
	}

	labelW := 0
	for _, p := range points {
		labelW = max(labelW, len(p.Name))
	}
	labelW = min(labelW, maxLabelWidth)

	lines := make([]string, 0, len(points))
	for _, p := range points {
		label := p.Name
		if len(label) > labelW {
			label = label[:labelW-1] + "…"
		}

		filled := int(p.Value / 100 * barWidth)
		if filled < 1 && p.Value > 0 {
			filled = 1
		}
		filled = min(filled, barWidth)

		lines = append(lines, fmt.Sprintf("%-*s %s%s %6.2f%%",
			labelW, label,
			s.bar.Render(strings.Repeat("█", filled)),
			s.track.Render(strings.Repeat("░", barWidth-filled)),
			p.Value))
	}
	return strings.Join(lines, "\n")
}

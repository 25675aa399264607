// Package dashboard binds a builders report to its filter page: checkbox
// clicks update the filter state, the shareable link, the visible table rows
// and the chart points
package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aparcar/buildboard/internal/charts"
	"github.com/aparcar/buildboard/internal/filters"
	"github.com/aparcar/buildboard/internal/logging"
	"github.com/aparcar/buildboard/internal/table"
	"github.com/aparcar/buildboard/internal/web"
)

// PageField carries the page URL through the filter form
const PageField = "page"

var pageTemplate = template.Must(template.ParseFS(web.TemplatesFS, "templates/builders.html"))

// Page describes the report the session is built for
type Page struct {
	Title    string
	Branch   string
	Start    int64
	End      int64
	URL      string
	ApplyURL string
	ChartURL string
	Header   []string
	Rows     [][]string
	Columns  table.Columns
	// Options lists extra checkbox values per filter, shown even when no
	// row carries them
	Options map[string][]string
}

type group struct {
	Name   string
	Values []string
}

type hidden struct {
	Name  string
	Value string
}

type rowsData struct {
	Rows    [][]string
	Numeric map[int]bool
}

type pageData struct {
	Title     string
	SessionID string
	Branch    string
	Start     int64
	End       int64
	ApplyURL  string
	ChartURL  string
	Hidden    []hidden
	Groups    []group
	Header    []string
}

// Session is one rendering of the builders page
type Session struct {
	ID string

	mu      sync.Mutex
	doc     *goquery.Document
	scope   *filters.DocumentScope
	state   *filters.State
	grid    *table.Grid
	adapter *table.Adapter
	cols    table.Columns
	points  []charts.Point
	err     error
}

// NewSession renders the page, reads the filters from p.URL, synchronizes
// the checkboxes and applies the filters to the table
func NewSession(p Page) (*Session, error) {
	if p.Columns.Filters == nil {
		p.Columns = table.DefaultColumns()
	}

	s := &Session{
		ID:   uuid.New().String(),
		cols: p.Columns,
	}

	var buf bytes.Buffer
	err := pageTemplate.ExecuteTemplate(&buf, "builders.html", pageData{
		Title:     p.Title,
		SessionID: s.ID,
		Branch:    p.Branch,
		Start:     p.Start,
		End:       p.End,
		ApplyURL:  p.ApplyURL,
		ChartURL:  p.ChartURL,
		Hidden:    []hidden{{Name: PageField, Value: p.URL}},
		Groups:    groups(p),
		Header:    p.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	s.doc, err = goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	s.scope = filters.NewDocumentScope(s.doc.Find("#filters"), filters.DefaultLinkSelector)
	s.grid = table.NewGrid(p.Header, p.Rows)
	s.adapter = table.NewAdapter(s.grid, table.Options{
		Columns: p.Columns,
		Redraw:  s.redraw,
	})
	s.state = filters.New(filters.ParseFromURL(filters.Names, p.URL), s.scope, filters.Options{
		PageURL:  p.URL,
		OnChange: s.onChange,
	})

	if err := s.adapter.ApplyFilters(s.state); err != nil {
		return nil, fmt.Errorf("failed to apply filters: %w", err)
	}
	return s, nil
}

// groups lists the checkbox values of each filter: the distinct values of its
// column plus the configured options
func groups(p Page) []group {
	out := make([]group, 0, len(filters.Names))
	for _, name := range filters.Names {
		seen := make(map[string]bool)
		var values []string
		add := func(v string) {
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
		for _, v := range p.Options[name] {
			add(v)
		}
		if col, ok := p.Columns.Filters[name]; ok {
			var fromRows []string
			for _, row := range p.Rows {
				if col < len(row) && !seen[row[col]] {
					fromRows = append(fromRows, row[col])
					seen[row[col]] = true
				}
			}
			sort.Strings(fromRows)
			values = append(values, fromRows...)
		}
		out = append(out, group{Name: name, Values: values})
	}
	return out
}

func (s *Session) redraw(points []charts.Point) error {
	s.points = charts.SortPoints(points)
	return nil
}

func (s *Session) onChange(name string, values []string) {
	logging.Log.WithFields(logrus.Fields{
		"session": s.ID,
		"filter":  name,
		"values":  strings.Join(values, ","),
	}).Debug("filter changed")

	if err := s.adapter.ApplyFilters(s.state); err != nil {
		s.err = err
		logging.Log.WithError(err).Warn("failed to apply filters")
	}
}

// Click toggles the checkbox name=value. It reports false when the page has
// no such checkbox
func (s *Session) Click(name, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = nil
	ok := s.scope.Click(name, value)
	return ok, s.err
}

// Apply sets the checked values of every filter as submitted by the filter
// form. Filters missing from selection end up with nothing checked
func (s *Session) Apply(selection map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = nil
	for _, name := range s.state.Names() {
		s.scope.Check(name, selection[name])
		if s.err != nil {
			return s.err
		}
	}
	return nil
}

// Filters returns the current filter state
func (s *Session) Filters() filters.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Filters()
}

// Link returns the shareable link of the current filters
func (s *Session) Link() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetLink()
}

// Points returns the chart points of the visible rows, largest first
func (s *Session) Points() []charts.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]charts.Point(nil), s.points...)
}

// VisibleRows returns the displayed rows with their recomputed percentages
func (s *Session) VisibleRows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.grid.FilteredData()
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// HTML renders the page with the visible rows in the table body
func (s *Session) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	err := pageTemplate.ExecuteTemplate(&buf, "builder-rows", rowsData{
		Rows:    s.grid.FilteredData(),
		Numeric: map[int]bool{s.cols.Percentage: true, s.cols.Sum: true},
	})
	if err != nil {
		return "", fmt.Errorf("failed to render rows: %w", err)
	}

	body := s.doc.Find("#builders tbody")
	body.Empty()
	body.AppendHtml(buf.String())

	out, err := s.doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return out, nil
}

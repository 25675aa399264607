// Package filters holds the accepted values of each report filter and keeps
// them in step with the filter checkboxes of a page
package filters

import (
	"sort"
	"strings"

	"github.com/aparcar/buildboard/internal/urlparams"
)

// Filter names used by the builders report
const (
	Platform    = "platform"
	BuildType   = "build_type"
	JobType     = "job_type"
	DetailLevel = "detail_level"
)

// DefaultDetailLevel is used when detail_level is absent from the URL
const DefaultDetailLevel = "builder"

// DefaultLinkSelector matches the element showing the shareable link
const DefaultLinkSelector = ".link"

// Names lists the builders report filters
var Names = []string{DetailLevel, Platform, BuildType, JobType}

// Filters maps a filter name to its accepted values. An empty list accepts
// everything
type Filters map[string][]string

// ParseFromURL reads the comma separated values of each named filter from
// the query string of rawURL
func ParseFromURL(names []string, rawURL string) Filters {
	params := urlparams.Parse(rawURL)
	f := make(Filters, len(names))
	for _, name := range names {
		values := []string{}
		if name == DetailLevel {
			values = []string{DefaultDetailLevel}
		}
		if v, ok := params.Get(name); ok && v != "" {
			values = strings.Split(v, ",")
		}
		f[name] = values
	}
	return f
}

// Accepts reports whether value passes a filter with the given accepted values
func Accepts(accepted []string, value string) bool {
	return len(accepted) == 0 || contains(accepted, value)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Options configure a State
type Options struct {
	// PageURL is the URL the shareable link is derived from
	PageURL string
	// OnChange is called after a click changed the values of a filter
	OnChange func(name string, values []string)
}

// State is the filter state of one page
type State struct {
	names   []string
	filters Filters
	scope   Scope
	opts    Options
}

// New creates the state for initial, registers a click listener per filter
// on scope and synchronizes the checkboxes
func New(initial Filters, scope Scope, opts Options) *State {
	s := &State{
		filters: make(Filters, len(initial)),
		scope:   scope,
		opts:    opts,
	}
	for name, values := range initial {
		s.names = append(s.names, name)
		s.filters[name] = clone(values)
	}
	sort.Strings(s.names)

	for _, name := range s.names {
		scope.OnClick(name, s.handleClick)
	}
	s.Sync()
	return s
}

// Names returns the filter names in sorted order
func (s *State) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// GetFilter returns the accepted values of name
func (s *State) GetFilter(name string) []string {
	return clone(s.filters[name])
}

// SetFilter replaces the accepted values of name
func (s *State) SetFilter(name string, values []string) {
	if _, ok := s.filters[name]; !ok {
		s.names = append(s.names, name)
		sort.Strings(s.names)
	}
	s.filters[name] = clone(values)
}

// Filters returns a copy of all filters
func (s *State) Filters() Filters {
	out := make(Filters, len(s.filters))
	for name, values := range s.filters {
		out[name] = clone(values)
	}
	return out
}

// GetLink returns the page URL with every filter written as a comma
// separated query parameter
func (s *State) GetLink() string {
	overrides := make(map[string]string, len(s.filters))
	for name, values := range s.filters {
		overrides[name] = strings.Join(values, ",")
	}
	return urlparams.Serialize(overrides, s.opts.PageURL)
}

// Sync marks every checkbox according to the current state and refreshes the
// link
func (s *State) Sync() {
	for _, name := range s.names {
		accepted := s.filters[name]
		for _, cb := range s.scope.Checkboxes(name) {
			cb.SetChecked(Accepts(accepted, cb.Value()))
		}
	}
	s.scope.SetLink(s.GetLink())
}

func (s *State) handleClick(name string) {
	values := []string{}
	for _, cb := range s.scope.Checkboxes(name) {
		if cb.Checked() {
			values = append(values, cb.Value())
		}
	}

	s.SetFilter(name, values)
	s.scope.SetLink(s.GetLink())
	if s.opts.OnChange != nil {
		s.opts.OnChange(name, clone(values))
	}
}

func clone(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}

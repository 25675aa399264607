// Package report aggregates build requests into per-builder run time reports
package report

import (
	"sort"
	"strconv"
	"strings"

	"github.com/aparcar/buildboard/internal/charts"
	"github.com/aparcar/buildboard/internal/filters"
	"github.com/aparcar/buildboard/internal/models"
)

// Detail levels of a builders report, from coarse to fine
const (
	LevelPlatform  = "platform"
	LevelBuildType = "build_type"
	LevelJobType   = "job_type"
	LevelBuilder   = filters.DefaultDetailLevel
)

// DetailLevels lists the levels in tree order
var DetailLevels = []string{LevelPlatform, LevelBuildType, LevelJobType, LevelBuilder}

// Row layout of BuildersReport.Rows
const (
	ColDetailLevel = iota
	ColPlatform
	ColBuildType
	ColJobType
	ColBuilderName
	ColPercentage
	ColSum
	ColAvg
	ColMin
	ColMax
	ColTotal
)

// Header names the columns of BuildersReport.Rows
var Header = []string{
	"detail_level", "platform", "build_type", "job_type", "buildername",
	"ptg", "sum", "avg", "min", "max", "total",
}

// Stats accumulates the run times of finished build requests
type Stats struct {
	Sum     int64                 `json:"sum_run_time"`
	Min     int64                 `json:"min_run_time"`
	Max     int64                 `json:"max_run_time"`
	Total   int                   `json:"total_build_requests"`
	Results map[models.Result]int `json:"results"`
}

func newStats() Stats {
	results := make(map[models.Result]int, len(models.Results))
	for _, res := range models.Results {
		results[res] = 0
	}
	return Stats{Results: results}
}

func (s *Stats) add(runTime int64, result models.Result) {
	if s.Total == 0 || runTime < s.Min {
		s.Min = runTime
	}
	if runTime > s.Max {
		s.Max = runTime
	}
	s.Sum += runTime
	s.Total++
	if _, ok := s.Results[result]; ok {
		s.Results[result]++
	}
}

func (s *Stats) merge(o Stats) {
	if o.Total == 0 {
		return
	}
	if s.Total == 0 || o.Min < s.Min {
		s.Min = o.Min
	}
	if o.Max > s.Max {
		s.Max = o.Max
	}
	s.Sum += o.Sum
	s.Total += o.Total
	for res, n := range o.Results {
		s.Results[res] += n
	}
}

// Avg is the mean run time, or 0 without requests
func (s Stats) Avg() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Total)
}

// PtgResults returns the share of every result in percent
func (s Stats) PtgResults() map[models.Result]float64 {
	out := make(map[models.Result]float64, len(s.Results))
	for res, n := range s.Results {
		if s.Total == 0 {
			out[res] = 0
			continue
		}
		out[res] = float64(n) / float64(s.Total) * 100
	}
	return out
}

// BuilderTypeReport holds the statistics of one builder
type BuilderTypeReport struct {
	BuilderName string `json:"buildername"`
	Platform    string `json:"platform"`
	BuildType   string `json:"build_type"`
	JobType     string `json:"job_type"`
	Start       int64  `json:"starttime,omitempty"`
	End         int64  `json:"endtime,omitempty"`
	Stats

	BuildRequests []*models.BuildRequest `json:"build_requests,omitempty"`
	keepRequests  bool
}

// NewBuilderTypeReport creates an empty report for builderName. With
// keepRequests the added build requests are listed in the report
func NewBuilderTypeReport(builderName string, start, end int64, keepRequests bool) *BuilderTypeReport {
	return &BuilderTypeReport{
		BuilderName:  builderName,
		Platform:     Platform(builderName),
		BuildType:    BuildType(builderName),
		JobType:      JobType(builderName),
		Start:        start,
		End:          end,
		Stats:        newStats(),
		keepRequests: keepRequests,
	}
}

// Add accounts br unless it is still pending or running
func (b *BuilderTypeReport) Add(br *models.BuildRequest) bool {
	if !br.IsFinished() {
		return false
	}
	b.Stats.add(br.RunTime(), br.Result)
	if b.keepRequests {
		b.BuildRequests = append(b.BuildRequests, br)
	}
	return true
}

// Path returns the classification of the builder followed by its name
func (b *BuilderTypeReport) Path() []string {
	return []string{b.Platform, b.BuildType, b.JobType, b.BuilderName}
}

// Matches reports whether the builder passes the classification filters
func (b *BuilderTypeReport) Matches(f filters.Filters) bool {
	return filters.Accepts(f[filters.Platform], b.Platform) &&
		filters.Accepts(f[filters.BuildType], b.BuildType) &&
		filters.Accepts(f[filters.JobType], b.JobType)
}

// BuildersReport holds the per-builder statistics of a branch
type BuildersReport struct {
	Branch string
	Start  int64
	End    int64
	Stats  Stats

	builders map[string]*BuilderTypeReport
}

// NewBuildersReport creates an empty report of branch over [start, end)
func NewBuildersReport(branch string, start, end int64) *BuildersReport {
	return &BuildersReport{
		Branch:   branch,
		Start:    start,
		End:      end,
		Stats:    newStats(),
		builders: make(map[string]*BuilderTypeReport),
	}
}

// Add accounts br to its builder
func (r *BuildersReport) Add(br *models.BuildRequest) {
	b, ok := r.builders[br.BuilderName]
	if !ok {
		b = NewBuilderTypeReport(br.BuilderName, 0, 0, false)
		r.builders[br.BuilderName] = b
	}
	if b.Add(br) {
		r.Stats.add(br.RunTime(), br.Result)
	}
}

// Builder returns the report of one builder
func (r *BuildersReport) Builder(name string) (*BuilderTypeReport, bool) {
	b, ok := r.builders[name]
	return b, ok
}

// Builders returns the builder reports ordered by classification and name
func (r *BuildersReport) Builders() []*BuilderTypeReport {
	out := make([]*BuilderTypeReport, 0, len(r.builders))
	for _, b := range r.builders {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessPath(out[i].Path(), out[j].Path())
	})
	return out
}

func lessPath(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Node is an aggregate over the builders sharing a classification prefix
type Node struct {
	Level       string
	Platform    string
	BuildType   string
	JobType     string
	BuilderName string
	Stats       Stats
	Children    []*Node
}

// Tree groups the builders by platform, build type and job type. The
// returned nodes are the platform level
func (r *BuildersReport) Tree() []*Node {
	var roots []*Node
	index := make(map[string]*Node)

	child := func(parent *Node, key, level string, tmpl Node) *Node {
		if n, ok := index[key]; ok {
			return n
		}
		n := tmpl
		n.Level = level
		n.Stats = newStats()
		index[key] = &n
		if parent == nil {
			roots = append(roots, &n)
		} else {
			parent.Children = append(parent.Children, &n)
		}
		return &n
	}

	for _, b := range r.Builders() {
		p := child(nil, b.Platform, LevelPlatform, Node{Platform: b.Platform})
		bt := child(p, b.Platform+"\x00"+b.BuildType, LevelBuildType,
			Node{Platform: b.Platform, BuildType: b.BuildType})
		jt := child(bt, b.Platform+"\x00"+b.BuildType+"\x00"+b.JobType, LevelJobType,
			Node{Platform: b.Platform, BuildType: b.BuildType, JobType: b.JobType})
		leaf := &Node{
			Level:       LevelBuilder,
			Platform:    b.Platform,
			BuildType:   b.BuildType,
			JobType:     b.JobType,
			BuilderName: b.BuilderName,
			Stats:       b.Stats,
		}
		jt.Children = append(jt.Children, leaf)
		for _, n := range []*Node{p, bt, jt} {
			n.Stats.merge(b.Stats)
		}
	}
	return roots
}

// Rows flattens the tree depth first into table rows laid out as Header
// The percentage column is the share of the report's total run time
func (r *BuildersReport) Rows() [][]string {
	var rows [][]string
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			rows = append(rows, r.row(n))
			walk(n.Children)
		}
	}
	walk(r.Tree())
	return rows
}

func (r *BuildersReport) row(n *Node) []string {
	return []string{
		n.Level,
		n.Platform,
		n.BuildType,
		n.JobType,
		n.BuilderName,
		formatPtg(share(n.Stats.Sum, r.Stats.Sum)),
		strconv.FormatInt(n.Stats.Sum, 10),
		strconv.FormatFloat(n.Stats.Avg(), 'f', 2, 64),
		strconv.FormatInt(n.Stats.Min, 10),
		strconv.FormatInt(n.Stats.Max, 10),
		strconv.Itoa(n.Stats.Total),
	}
}

// Points returns a chart point per builder passing f, valued by its share of
// the run time of those builders, largest first
func (r *BuildersReport) Points(f filters.Filters) []charts.Point {
	var matched []*BuilderTypeReport
	var total int64
	for _, b := range r.Builders() {
		if b.Matches(f) {
			matched = append(matched, b)
			total += b.Sum
		}
	}

	points := make([]charts.Point, 0, len(matched))
	for _, b := range matched {
		v, _ := strconv.ParseFloat(formatPtg(share(b.Sum, total)), 64)
		points = append(points, charts.Point{
			Name:  strings.Join(b.Path(), " "),
			Value: v,
		})
	}
	return charts.SortPoints(points)
}

// Summary is the JSON form of a BuildersReport
type Summary struct {
	Branch   string                        `json:"branch_name"`
	Start    int64                         `json:"starttime"`
	End      int64                         `json:"endtime"`
	Stats    Stats                         `json:"totals"`
	Builders map[string]*BuilderTypeReport `json:"builders"`
}

// Summary returns the builders passing f
func (r *BuildersReport) Summary(f filters.Filters) Summary {
	s := Summary{
		Branch:   r.Branch,
		Start:    r.Start,
		End:      r.End,
		Stats:    r.Stats,
		Builders: make(map[string]*BuilderTypeReport),
	}
	for name, b := range r.builders {
		if b.Matches(f) {
			s.Builders[name] = b
		}
	}
	return s
}

func share(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

func formatPtg(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

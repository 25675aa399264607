package report

import (
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/aparcar/buildboard/internal/charts"
	"github.com/aparcar/buildboard/internal/models"
)

// DefaultMinutesPerBlock is the width of a wait time block
const DefaultMinutesPerBlock = 15

// Repacks are not waited on by developers
var waitTimesExclude = regexp.MustCompile(`.+ l10n .+`)

// WaitTimeIntervals counts the requests of one block, in total and per interval
type WaitTimeIntervals struct {
	Total     int   `json:"total"`
	Intervals []int `json:"intervals"`
}

func newWaitTimeIntervals(n int) *WaitTimeIntervals {
	return &WaitTimeIntervals{Intervals: make([]int, n)}
}

func (w *WaitTimeIntervals) update(idx int) {
	w.Total++
	w.Intervals[idx]++
}

func (w *WaitTimeIntervals) clone() WaitTimeIntervals {
	return WaitTimeIntervals{Total: w.Total, Intervals: append([]int(nil), w.Intervals...)}
}

type blocks map[int]*WaitTimeIntervals

// WaitTimesReport buckets the wait of started build requests, from submission
// to start, into blocks of MinutesPerBlock minutes. With an IntervalSize the
// counts of every block are also broken down per interval of [Start, End)
type WaitTimesReport struct {
	Branch          string
	Start           int64
	End             int64
	MinutesPerBlock int
	// MaxBlock collects all longer waits when set
	MaxBlock     int
	IntervalSize int64
	Total        int
	Pending      []string

	intervals      int
	all            blocks
	platforms      map[string]blocks
	platformTotals map[string]int
	other          map[string]bool
	unknown        map[string]bool
}

// NewWaitTimesReport creates an empty report. maxBlock is rounded down to a
// multiple of minutesPerBlock
func NewWaitTimesReport(branch string, start, end int64, minutesPerBlock, maxBlock int, intervalSize int64) *WaitTimesReport {
	if minutesPerBlock < 1 {
		minutesPerBlock = DefaultMinutesPerBlock
	}
	n := 1
	if intervalSize > 0 && end > start {
		n = int((end-start-1)/intervalSize) + 1
	}
	return &WaitTimesReport{
		Branch:          branch,
		Start:           start,
		End:             end,
		MinutesPerBlock: minutesPerBlock,
		MaxBlock:        maxBlock / minutesPerBlock * minutesPerBlock,
		IntervalSize:    intervalSize,
		Pending:         []string{},
		intervals:       n,
		all:             blocks{0: newWaitTimeIntervals(n)},
		platforms:       make(map[string]blocks),
		platformTotals:  make(map[string]int),
		other:           make(map[string]bool),
		unknown:         make(map[string]bool),
	}
}

// Add accounts br. Requests that have not started are listed as pending
func (r *WaitTimesReport) Add(br *models.BuildRequest) {
	platform := Platform(br.BuilderName)
	if platform == "" || waitTimesExclude.MatchString(br.BuilderName) {
		r.unknown[br.BuilderName] = true
		return
	}
	if br.StartTime == 0 {
		r.Pending = append(r.Pending, br.BuilderName)
		return
	}
	if platform == Other {
		r.other[br.BuilderName] = true
	}

	block := r.block(br.SubmittedAt, br.StartTime)
	idx := r.intervalIndex(br.SubmittedAt)

	r.Total++
	r.all.update(block, idx, r.intervals)

	if r.platforms[platform] == nil {
		r.platforms[platform] = blocks{0: newWaitTimeIntervals(r.intervals)}
	}
	r.platforms[platform].update(block, idx, r.intervals)
	r.platformTotals[platform]++
}

func (b blocks) update(block, idx, n int) {
	if b[block] == nil {
		b[block] = newWaitTimeIntervals(n)
	}
	b[block].update(idx)
}

func (r *WaitTimesReport) block(submitted, started int64) int {
	span := 0.0
	if submitted <= started {
		span = float64(started-submitted) / 60
	}
	block := int(math.Floor(span/float64(r.MinutesPerBlock))) * r.MinutesPerBlock
	if r.MaxBlock > 0 && block > r.MaxBlock {
		block = r.MaxBlock
	}
	return block
}

func (r *WaitTimesReport) intervalIndex(submitted int64) int {
	if r.IntervalSize <= 0 {
		return 0
	}
	var t int64
	if submitted > r.Start {
		t = submitted - r.Start
	}
	return min(int(t/r.IntervalSize), r.intervals-1)
}

func (r *WaitTimesReport) blocksOf(platform string) blocks {
	if platform == "" {
		return r.all
	}
	return r.platforms[platform]
}

// Blocks lists the block starts from 0 up to the longest wait, of all
// requests or of one platform
func (r *WaitTimesReport) Blocks(platform string) []int {
	b := r.blocksOf(platform)
	if b == nil {
		return nil
	}
	longest := 0
	for block := range b {
		longest = max(longest, block)
	}
	var out []int
	for block := 0; block <= longest; block += r.MinutesPerBlock {
		out = append(out, block)
	}
	return out
}

// WaitTimes returns the counts of one block, empty when no request fell in it
func (r *WaitTimesReport) WaitTimes(block int, platform string) WaitTimeIntervals {
	if w := r.blocksOf(platform)[block]; w != nil {
		return w.clone()
	}
	return *newWaitTimeIntervals(r.intervals)
}

// Platforms returns the platforms with started requests, sorted
func (r *WaitTimesReport) Platforms() []string {
	return sortedKeys(r.platformTotals)
}

// PlatformTotal returns the number of started requests of platform
func (r *WaitTimesReport) PlatformTotal(platform string) int {
	return r.platformTotals[platform]
}

// Dataset has a row per block and a column of request counts per platform
func (r *WaitTimesReport) Dataset() charts.Dataset {
	platforms := r.Platforms()
	data := charts.Dataset{Columns: append([]string{"minutes"}, platforms...)}
	for _, block := range r.Blocks("") {
		row := charts.DataRow{Label: strconv.Itoa(block), Values: make([]float64, len(platforms))}
		for i, p := range platforms {
			row.Values[i] = float64(r.WaitTimes(block, p).Total)
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

// PlatformWaitTimes is the JSON form of the blocks of one platform
type PlatformWaitTimes struct {
	Total     int                       `json:"total"`
	WaitTimes map[int]WaitTimeIntervals `json:"wt"`
}

// WaitTimesSummary is the JSON form of a WaitTimesReport
type WaitTimesSummary struct {
	Branch          string                       `json:"branch_name"`
	Start           int64                        `json:"starttime"`
	End             int64                        `json:"endtime"`
	IntervalSize    int64                        `json:"int_size"`
	MinutesPerBlock int                          `json:"minutes_per_block"`
	MaxBlock        int                          `json:"maxb"`
	Total           int                          `json:"total"`
	Pending         []string                     `json:"pending"`
	OtherPlatforms  []string                     `json:"otherplatforms"`
	UnknownBuilders []string                     `json:"unknownbuilders"`
	WaitTimes       map[int]WaitTimeIntervals    `json:"wt"`
	Platforms       map[string]PlatformWaitTimes `json:"platforms"`
}

// Summary returns the report with every block filled in
func (r *WaitTimesReport) Summary() WaitTimesSummary {
	s := WaitTimesSummary{
		Branch:          r.Branch,
		Start:           r.Start,
		End:             r.End,
		IntervalSize:    r.IntervalSize,
		MinutesPerBlock: r.MinutesPerBlock,
		MaxBlock:        r.MaxBlock,
		Total:           r.Total,
		Pending:         r.Pending,
		OtherPlatforms:  sortedKeys(r.other),
		UnknownBuilders: sortedKeys(r.unknown),
		WaitTimes:       r.summaryBlocks(""),
		Platforms:       make(map[string]PlatformWaitTimes),
	}
	for _, p := range r.Platforms() {
		s.Platforms[p] = PlatformWaitTimes{Total: r.PlatformTotal(p), WaitTimes: r.summaryBlocks(p)}
	}
	return s
}

func (r *WaitTimesReport) summaryBlocks(platform string) map[int]WaitTimeIntervals {
	out := make(map[int]WaitTimeIntervals)
	for _, block := range r.Blocks(platform) {
		out[block] = r.WaitTimes(block, platform)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

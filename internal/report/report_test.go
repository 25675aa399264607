package report

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/aparcar/buildboard/internal/charts"
	"github.com/aparcar/buildboard/internal/filters"
	"github.com/aparcar/buildboard/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		platform  string
		buildType string
		jobType   string
	}{
		{"Linux mozilla-central build", "linux-mock", "opt", "build"},
		{"Linux mozilla-central leak test build", "linux-mock", "debug", "build"},
		{"Ubuntu VM 12.04 x64 mozilla-central opt test mochitest-1", "ubuntu64_vm", "opt", "unittest"},
		{"Ubuntu VM 12.04 mozilla-central debug test crashtest", "ubuntu32_vm", "debug", "unittest"},
		{"Rev5 MacOSX Mountain Lion 10.8 mozilla-central talos tp5o", "mountainlion", "opt", "talos"},
		{"Windows 7 32-bit mozilla-central opt test reftest", "win7-ix", "opt", "unittest"},
		{"b2g_mozilla-central_emulator nightly", "linux-mock", "opt", "build"},
		{"TB WINNT 5.2 comm-central build", "win2k8", "opt", "build"},
		{"mystery job", Other, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Platform(tt.name); got != tt.platform {
				t.Errorf("Platform = %q, want %q", got, tt.platform)
			}
			if got := BuildType(tt.name); got != tt.buildType {
				t.Errorf("BuildType = %q, want %q", got, tt.buildType)
			}
			if got := JobType(tt.name); got != tt.jobType {
				t.Errorf("JobType = %q, want %q", got, tt.jobType)
			}
		})
	}

	if Platform("") != "" {
		t.Error("empty builder name should have no platform")
	}
}

func TestAndroidEmulatorSplit(t *testing.T) {
	if got := Platform("Android 2.3 Emulator mozilla-central opt test crashtest-1"); got != "ubuntu64_emulator_vm" {
		t.Errorf("crashtest platform = %q", got)
	}
	if got := Platform("Android 2.3 Emulator mozilla-central opt test mochitest-1"); got != "ubuntu64_vm" {
		t.Errorf("mochitest platform = %q", got)
	}
}

func TestGetTimeInterval(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	tests := []struct {
		name               string
		start, end         int64
		wantStart, wantEnd int64
	}{
		{"both set", 10, 20, 10, 20},
		{"no end, recent start", 1_000_000 - 3600, 0, 1_000_000 - 3600, 1_000_000},
		{"no end, old start", 100, 0, 100, 100 + Day},
		{"no start", 0, 500_000, 500_000 - Day, 500_000},
		{"neither", 0, 0, 1_000_000 - Day, 1_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := GetTimeInterval(tt.start, tt.end, now)
			if s != tt.wantStart || e != tt.wantEnd {
				t.Errorf("got (%d, %d), want (%d, %d)", s, e, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func request(id int64, builder string, submitted, started, completed int64, result models.Result) *models.BuildRequest {
	br := &models.BuildRequest{
		ID:          id,
		Branch:      "mozilla-central",
		BuilderName: builder,
		SubmittedAt: submitted,
		StartTime:   started,
		CompleteAt:  completed,
		Result:      result,
	}
	br.Normalize()
	return br
}

const (
	linuxBuild = "Linux mozilla-central build"
	linuxLeak  = "Linux mozilla-central leak test build"
	macTalos   = "Rev5 MacOSX Mountain Lion 10.8 mozilla-central talos tp5o"
)

func sampleReport() *BuildersReport {
	// run times 300, 100, 100 and 400; the last two requests are unfinished
	r := NewBuildersReport("mozilla-central", 0, 100_000)
	r.Add(request(1, linuxBuild, 100, 110, 410, models.ResultSuccess))
	r.Add(request(2, linuxBuild, 200, 200, 300, models.ResultFailure))
	r.Add(request(3, linuxLeak, 100, 100, 200, models.ResultSuccess))
	r.Add(request(4, macTalos, 100, 150, 550, models.ResultWarnings))
	r.Add(request(5, macTalos, 100, 150, 0, models.ResultNoResult))
	r.Add(request(6, linuxBuild, 100, 0, 0, models.ResultNoResult))
	return r
}

func TestBuilderStats(t *testing.T) {
	r := sampleReport()

	b, ok := r.Builder(linuxBuild)
	if !ok {
		t.Fatal("builder missing")
	}
	if b.Total != 2 || b.Sum != 400 || b.Min != 100 || b.Max != 300 || b.Avg() != 200 {
		t.Errorf("stats = %+v avg %v", b.Stats, b.Avg())
	}
	ptg := b.PtgResults()
	if ptg[models.ResultSuccess] != 50 || ptg[models.ResultFailure] != 50 || ptg[models.ResultRetry] != 0 {
		t.Errorf("ptg results = %v", ptg)
	}

	mac, _ := r.Builder(macTalos)
	if mac.Total != 1 {
		t.Errorf("running request was counted: total %d", mac.Total)
	}
	if r.Stats.Sum != 900 || r.Stats.Total != 4 {
		t.Errorf("report stats = %+v", r.Stats)
	}
}

func TestEmptyStats(t *testing.T) {
	s := newStats()
	if s.Avg() != 0 {
		t.Errorf("avg = %v", s.Avg())
	}
	for res, v := range s.PtgResults() {
		if v != 0 {
			t.Errorf("%s = %v", res, v)
		}
	}
}

func TestRows(t *testing.T) {
	rows := sampleReport().Rows()

	want := [][]string{
		{"platform", "linux-mock", "", "", "", "55.56", "500", "166.67", "100", "300", "3"},
		{"build_type", "linux-mock", "debug", "", "", "11.11", "100", "100.00", "100", "100", "1"},
		{"job_type", "linux-mock", "debug", "build", "", "11.11", "100", "100.00", "100", "100", "1"},
		{"builder", "linux-mock", "debug", "build", linuxLeak, "11.11", "100", "100.00", "100", "100", "1"},
		{"build_type", "linux-mock", "opt", "", "", "44.44", "400", "200.00", "100", "300", "2"},
		{"job_type", "linux-mock", "opt", "build", "", "44.44", "400", "200.00", "100", "300", "2"},
		{"builder", "linux-mock", "opt", "build", linuxBuild, "44.44", "400", "200.00", "100", "300", "2"},
		{"platform", "mountainlion", "", "", "", "44.44", "400", "400.00", "400", "400", "1"},
		{"build_type", "mountainlion", "opt", "", "", "44.44", "400", "400.00", "400", "400", "1"},
		{"job_type", "mountainlion", "opt", "talos", "", "44.44", "400", "400.00", "400", "400", "1"},
		{"builder", "mountainlion", "opt", "talos", macTalos, "44.44", "400", "400.00", "400", "400", "1"},
	}
	if !reflect.DeepEqual(rows, want) {
		for i := range rows {
			t.Logf("%v", rows[i])
		}
		t.Fatalf("rows differ")
	}
	for _, row := range rows {
		if len(row) != len(Header) {
			t.Fatalf("row has %d columns, header %d", len(row), len(Header))
		}
	}
}

func TestRowsZeroTotal(t *testing.T) {
	r := NewBuildersReport("b", 0, 1)
	r.Add(request(1, linuxBuild, 100, 100, 100, models.ResultSuccess))
	for _, row := range r.Rows() {
		if row[ColPercentage] != "0.00" {
			t.Errorf("percentage = %q, want 0.00", row[ColPercentage])
		}
	}
}

func TestPoints(t *testing.T) {
	r := sampleReport()

	got := r.Points(filters.Filters{filters.Platform: {"linux-mock"}})
	want := []charts.Point{
		{Name: "linux-mock opt build " + linuxBuild, Value: 80},
		{Name: "linux-mock debug build " + linuxLeak, Value: 20},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("points = %v, want %v", got, want)
	}

	if len(r.Points(nil)) != 3 {
		t.Errorf("unfiltered points = %v", r.Points(nil))
	}
}

func TestSummary(t *testing.T) {
	s := sampleReport().Summary(filters.Filters{filters.JobType: {"talos"}})
	if len(s.Builders) != 1 || s.Builders[macTalos] == nil {
		t.Errorf("summary builders = %v", s.Builders)
	}
	if s.Branch != "mozilla-central" || s.End != 100_000 {
		t.Errorf("summary = %+v", s)
	}
}

func TestBuilderTypeReportKeepsRequests(t *testing.T) {
	b := NewBuilderTypeReport(linuxBuild, 0, 10, true)
	b.Add(request(1, linuxBuild, 1, 2, 3, models.ResultSuccess))
	b.Add(request(2, linuxBuild, 1, 0, 0, models.ResultNoResult))
	if len(b.BuildRequests) != 1 {
		t.Errorf("kept %d requests, want 1", len(b.BuildRequests))
	}
	if b.Platform != "linux-mock" || b.JobType != "build" {
		t.Errorf("classification = %v", b.Path())
	}
}

func TestDailyJobTypeRunTime(t *testing.T) {
	day := int64(86400)
	reqs := []*models.BuildRequest{
		request(1, linuxBuild, 10, 10, 610, models.ResultSuccess),
		request(2, macTalos, 20, 20, 140, models.ResultSuccess),
		request(3, linuxBuild, day+10, day+10, day+130, models.ResultSuccess),
		request(4, "mystery job", day+10, day+10, day+70, models.ResultSuccess),
		request(5, linuxBuild, day+10, 0, 0, models.ResultNoResult),
	}

	data := DailyJobTypeRunTime(reqs)
	if !reflect.DeepEqual(data.Columns, []string{"day", "build", "other", "talos"}) {
		t.Fatalf("columns = %v", data.Columns)
	}
	want := []charts.DataRow{
		{Label: "1970-01-01", Values: []float64{10, 0, 2}},
		{Label: "1970-01-02", Values: []float64{2, 1, 0}},
	}
	if !reflect.DeepEqual(data.Rows, want) {
		t.Errorf("rows = %v, want %v", data.Rows, want)
	}
}

func TestCache(t *testing.T) {
	c := NewCache(50 * time.Millisecond)

	key := Key{Branch: "b", Start: 1, End: 2}
	loads := 0
	load := func() (*BuildersReport, error) {
		loads++
		return NewBuildersReport("b", 1, 2), nil
	}

	first, err := c.GetOrLoad(key, load)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := c.GetOrLoad(key, load)
	if first != second || loads != 1 {
		t.Errorf("cached report not reused, %d loads", loads)
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Error("expired entry returned")
	}
	if n := c.Purge(); n != 1 || c.Len() != 0 {
		t.Errorf("purged %d, %d left", n, c.Len())
	}

	if _, err := c.GetOrLoad(key, func() (*BuildersReport, error) { return nil, errors.New("db down") }); err == nil {
		t.Error("load error not returned")
	}
	if c.Len() != 0 {
		t.Error("failed load was cached")
	}
}

func TestCacheResetDuringLoad(t *testing.T) {
	c := NewCache(time.Minute)
	key := Key{Branch: "b"}

	stale := NewBuildersReport("b", 0, 0)
	got, err := c.GetOrLoad(key, func() (*BuildersReport, error) {
		c.Reset()
		return stale, nil
	})
	if err != nil || got != stale {
		t.Fatalf("GetOrLoad = %v, %v", got, err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("report loaded before a reset was cached")
	}

	fresh := NewBuildersReport("b", 0, 0)
	if got, _ := c.GetOrLoad(key, func() (*BuildersReport, error) { return fresh, nil }); got != fresh {
		t.Error("fresh report not returned")
	}
	if cached, ok := c.Get(key); !ok || cached != fresh {
		t.Error("fresh report not cached after the reset")
	}
}

func TestCacheDisabled(t *testing.T) {
	c := NewCache(0)
	c.Put(Key{}, NewBuildersReport("b", 0, 0))
	if _, ok := c.Get(Key{}); ok {
		t.Error("zero ttl cache stored an entry")
	}
}

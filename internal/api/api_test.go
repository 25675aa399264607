package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aparcar/buildboard/internal/config"
	"github.com/aparcar/buildboard/internal/db"
	"github.com/aparcar/buildboard/internal/models"
	"github.com/aparcar/buildboard/internal/report"
	"github.com/aparcar/buildboard/internal/table"
)

const (
	nowUnix    = int64(1_000_000)
	linuxBuild = "Linux mozilla-central build"
	linuxLeak  = "Linux mozilla-central leak test build"
	macTalos   = "Rev5 MacOSX Mountain Lion 10.8 mozilla-central talos tp5o"
)

func testConfig() *config.Config {
	cols := table.DefaultColumns()
	return &config.Config{
		ServerHost:           "127.0.0.1",
		ServerPort:           8080,
		DefaultBranch:        "mozilla-central",
		ReportCacheSeconds:   600,
		RetentionDays:        30,
		PruneIntervalSeconds: 3600,
		ImportTimeoutSeconds: 60,
		LogLevel:             "error",
		Table: config.TableConfig{
			DetailLevelCol: 0,
			PlatformCol:    1,
			BuildTypeCol:   2,
			JobTypeCol:     3,
			PercentageCol:  cols.Percentage,
			SumCol:         cols.Sum,
			LabelCols:      cols.Label,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := testConfig()
	s := NewServer(database, cfg, report.NewCache(cfg.ReportCacheTTL()))
	s.now = func() time.Time { return time.Unix(nowUnix, 0) }
	return s
}

// seed stores run times of 300 and 100 for the linux builders and 400 for the
// mac one, all within the last day
func seed(t *testing.T, s *Server) {
	t.Helper()
	base := nowUnix - 3600
	reqs := []*models.BuildRequest{
		{ID: 1, Branch: "mozilla-central", BuilderName: linuxBuild, SubmittedAt: base, StartTime: base, CompleteAt: base + 300, Result: models.ResultSuccess},
		{ID: 2, Branch: "mozilla-central", BuilderName: linuxLeak, SubmittedAt: base, StartTime: base, CompleteAt: base + 100, Result: models.ResultFailure},
		{ID: 3, Branch: "mozilla-central", BuilderName: macTalos, SubmittedAt: base, StartTime: base, CompleteAt: base + 400, Result: models.ResultSuccess},
		{ID: 4, Branch: "try", BuilderName: "Linux try build", SubmittedAt: base, StartTime: base, CompleteAt: base + 50},
	}
	if err := s.db.InsertBuildRequests(context.Background(), reqs); err != nil {
		t.Fatal(err)
	}
}

func do(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status        string `json:"status"`
		BuildRequests int    `json:"build_requests"`
	}
	decode(t, rec, &body)
	if body.Status != "healthy" || body.BuildRequests != 4 {
		t.Errorf("body = %+v", body)
	}
}

func TestCreateAndGetBuildRequest(t *testing.T) {
	s := newTestServer(t)

	if rec := do(t, s, http.MethodPost, "/api/v1/build-requests", []byte(`{"id": 1}`)); rec.Code != http.StatusBadRequest {
		t.Errorf("object body status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/build-requests", []byte(`[{"id": 1, "branch": "b"}]`)); rec.Code != http.StatusBadRequest {
		t.Errorf("missing buildername status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/build-requests", []byte(`[]`)); rec.Code != http.StatusBadRequest {
		t.Errorf("empty list status = %d", rec.Code)
	}

	body := []byte(`[{"id": 9, "branch": "b", "buildername": "x", "submitted_at": 10, "start_time": 15, "complete_at": 40, "result": "success"}]`)
	rec := do(t, s, http.MethodPost, "/api/v1/build-requests", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/build-requests/9", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got struct {
		Request  models.BuildRequest `json:"build_request"`
		RunTime  int64               `json:"run_time"`
		WaitTime int64               `json:"wait_time"`
	}
	decode(t, rec, &got)
	if got.Request.Status != models.JobStatusComplete || got.RunTime != 25 || got.WaitTime != 5 {
		t.Errorf("got %+v", got)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/build-requests/10", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing request status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/build-requests/x", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
}

func TestBuildersPage(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/reports/builders?platform=linux-mock", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}

	var names, ptgs []string
	doc.Find("#builders tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		names = append(names, cells.Eq(report.ColBuilderName).Text())
		ptgs = append(ptgs, cells.Eq(report.ColPercentage).Text())
	})
	if len(names) != 2 || names[0] != linuxLeak || names[1] != linuxBuild {
		t.Fatalf("rows = %v", names)
	}
	if ptgs[0] != "25.00" || ptgs[1] != "75.00" {
		t.Errorf("percentages = %v", ptgs)
	}

	link := doc.Find("input.link").AttrOr("value", "")
	if link != "/reports/builders?platform=linux-mock&build_type=&detail_level=builder&job_type=" {
		t.Errorf("link = %q", link)
	}
	if _, ok := doc.Find(`input[name="platform"][value="mountainlion"]`).Attr("checked"); ok {
		t.Error("mountainlion checkbox checked")
	}
	if src := doc.Find("iframe.chart").AttrOr("src", ""); src != "/reports/builders/chart?platform=linux-mock" {
		t.Errorf("chart src = %q", src)
	}
	if rec.Header().Get("X-Session-ID") == "" {
		t.Error("missing session id header")
	}
}

func TestBuildersPageInvalidTime(t *testing.T) {
	s := newTestServer(t)
	if rec := do(t, s, http.MethodGet, "/reports/builders?starttime=yesterday", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBuildersApplyRedirectsToLink(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	q := url.Values{
		"page":         {"/reports/builders?starttime=990000"},
		"platform":     {"mountainlion"},
		"detail_level": {"builder", "platform"},
	}
	rec := do(t, s, http.MethodGet, "/reports/builders/apply?"+q.Encode(), nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	want := "/reports/builders?starttime=990000&build_type=&detail_level=platform,builder&job_type=&platform=mountainlion"
	if loc := rec.Header().Get("Location"); loc != want {
		t.Errorf("location = %q, want %q", loc, want)
	}

	rec = do(t, s, http.MethodGet, "/reports/builders/apply?page="+url.QueryEscape("https://evil.example/"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("foreign page status = %d", rec.Code)
	}
}

func TestBuildersChart(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/reports/builders/chart?job_type=talos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "echarts") || !strings.Contains(body, "Run Time per Builder") {
		t.Error("chart page missing chart")
	}
}

func TestBuildersReportFormats(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/api/v1/reports/builders?job_type=talos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var summary struct {
		Branch   string                     `json:"branch_name"`
		Builders map[string]json.RawMessage `json:"builders"`
	}
	decode(t, rec, &summary)
	if summary.Branch != "mozilla-central" || len(summary.Builders) != 1 {
		t.Errorf("summary = %+v", summary)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/reports/builders?format=chart&reqid=7&platform=linux-mock", nil)
	var chart struct {
		ReqID  string `json:"reqid"`
		Points []struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		} `json:"points"`
	}
	decode(t, rec, &chart)
	if chart.ReqID != "7" || len(chart.Points) != 2 || chart.Points[0].Value != 75 {
		t.Errorf("chart = %+v", chart)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/reports/builders?format=xml", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/reports/builders?branch=try", nil); rec.Code != http.StatusOK {
		t.Errorf("branch status = %d", rec.Code)
	}
}

func TestReportCacheResetOnInsert(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	do(t, s, http.MethodGet, "/api/v1/reports/builders", nil)
	if s.cache.Len() != 1 {
		t.Fatalf("cache entries = %d", s.cache.Len())
	}
	body := []byte(`[{"id": 50, "branch": "mozilla-central", "buildername": "x", "submitted_at": 999000}]`)
	if rec := do(t, s, http.MethodPost, "/api/v1/build-requests", body); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if s.cache.Len() != 0 {
		t.Error("cache not reset after insert")
	}
}

func TestBuilderReport(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/api/v1/reports/builders/"+url.PathEscape(linuxBuild), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Report struct {
			BuilderName   string            `json:"buildername"`
			Platform      string            `json:"platform"`
			Total         int               `json:"total_build_requests"`
			Sum           int64             `json:"sum_run_time"`
			BuildRequests []json.RawMessage `json:"build_requests"`
		} `json:"report"`
		Avg float64 `json:"avg"`
	}
	decode(t, rec, &body)
	if body.Report.BuilderName != linuxBuild || body.Report.Platform != "linux-mock" {
		t.Errorf("report = %+v", body.Report)
	}
	if body.Report.Total != 1 || body.Report.Sum != 300 || body.Avg != 300 || len(body.Report.BuildRequests) != 1 {
		t.Errorf("report = %+v avg %v", body.Report, body.Avg)
	}
}

func TestRuntimeCharts(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	for _, kind := range []string{"area", "line", "column", "bar"} {
		rec := do(t, s, http.MethodGet, "/charts/runtime/"+kind+"?stacked=true", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", kind, rec.Code)
		}
	}
	if rec := do(t, s, http.MethodGet, "/charts/runtime/pie", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/charts/runtime/area?days=0", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad days status = %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/stats/runtime", nil)
	var data struct {
		Columns []string `json:"columns"`
		Rows    []struct {
			Label  string    `json:"label"`
			Values []float64 `json:"values"`
		} `json:"rows"`
	}
	decode(t, rec, &data)
	if len(data.Columns) != 3 || data.Columns[1] != "build" || data.Columns[2] != "talos" {
		t.Errorf("columns = %v", data.Columns)
	}
	if len(data.Rows) != 1 || len(data.Rows[0].Values) != 2 {
		t.Errorf("rows = %+v", data.Rows)
	}
}

func TestWebPages(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/reports/builders" {
		t.Errorf("root = %d %s", rec.Code, rec.Header().Get("Location"))
	}

	rec = do(t, s, http.MethodGet, "/stats?branch=try&days=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if n := doc.Find("iframe.chart").Length(); n != 4 {
		t.Errorf("%d charts on stats page", n)
	}
	if src := doc.Find(`iframe[data-kind="bar"]`).AttrOr("src", ""); src != "/charts/runtime/bar?branch=try&days=3" {
		t.Errorf("bar src = %q", src)
	}
	if n := doc.Find(".branches a").Length(); n != 0 {
		t.Errorf("%d branch links without data", n)
	}
	if !strings.Contains(doc.Find(".retention").Text(), "30d") {
		t.Errorf("retention = %q", doc.Find(".retention").Text())
	}

	if rec := do(t, s, http.MethodGet, "/static/style.css", nil); rec.Code != http.StatusOK {
		t.Errorf("static status = %d", rec.Code)
	}
}

func TestStatsPageBranches(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/stats", nil)
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	var branches []string
	doc.Find(".branches a").Each(func(_ int, a *goquery.Selection) {
		branches = append(branches, a.Text())
	})
	if strings.Join(branches, ",") != "mozilla-central,try" {
		t.Errorf("branches = %v", branches)
	}
}

func TestResultStats(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/api/v1/stats/results?days=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Branch string                    `json:"branch"`
		Start  int64                     `json:"starttime"`
		End    int64                     `json:"endtime"`
		Days   map[string]map[string]int `json:"days"`
	}
	decode(t, rec, &body)
	if body.Branch != "mozilla-central" || body.End != nowUnix || body.Start != nowUnix-2*report.Day {
		t.Errorf("body = %+v", body)
	}
	day := time.Unix(nowUnix-3600, 0).UTC().Format("2006-01-02")
	if got := body.Days[day]; got["success"] != 2 || got["failure"] != 1 {
		t.Errorf("days = %v", body.Days)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/stats/results?endtime=-1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad endtime status = %d", rec.Code)
	}
}

func TestWaitTimes(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	rec := do(t, s, http.MethodGet, "/api/v1/stats/waittimes?mpb=30&maxb=100&int_size=86400", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body report.WaitTimesSummary
	decode(t, rec, &body)
	if body.Branch != "mozilla-central" || body.End != nowUnix || body.Start != nowUnix-7*report.Day {
		t.Errorf("interval = %s %d-%d", body.Branch, body.Start, body.End)
	}
	if body.MinutesPerBlock != 30 || body.MaxBlock != 90 || body.IntervalSize != report.Day {
		t.Errorf("params = %d %d %d", body.MinutesPerBlock, body.MaxBlock, body.IntervalSize)
	}
	if body.Total != 3 {
		t.Errorf("total = %d, want 3", body.Total)
	}
	if wt := body.WaitTimes[0]; wt.Total != 3 || len(wt.Intervals) != 7 || wt.Intervals[6] != 3 {
		t.Errorf("wt[0] = %+v", wt)
	}
	if p := body.Platforms["linux-mock"]; p.Total != 2 {
		t.Errorf("linux-mock = %+v", p)
	}

	for _, target := range []string{
		"/api/v1/stats/waittimes?mpb=0",
		"/api/v1/stats/waittimes?maxb=x",
		"/api/v1/stats/waittimes?int_size=-1",
	} {
		if rec := do(t, s, http.MethodGet, target, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d", target, rec.Code)
		}
	}
}

func TestWaitTimesCharts(t *testing.T) {
	s := newTestServer(t)
	seed(t, s)

	for _, kind := range []string{"area", "line", "column", "bar"} {
		rec := do(t, s, http.MethodGet, "/charts/waittimes/"+kind, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", kind, rec.Code)
			continue
		}
		if !strings.Contains(rec.Body.String(), "Wait Times") {
			t.Errorf("%s chart lacks default title", kind)
		}
	}
	if rec := do(t, s, http.MethodGet, "/charts/waittimes/pie", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/charts/waittimes/line?mpb=-5", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad mpb status = %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/stats?branch=try", nil)
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if src := doc.Find("iframe.waittimes").AttrOr("src", ""); src != "/charts/waittimes/column?branch=try" {
		t.Errorf("wait times src = %q", src)
	}
}

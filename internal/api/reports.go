package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aparcar/buildboard/internal/charts"
	"github.com/aparcar/buildboard/internal/dashboard"
	"github.com/aparcar/buildboard/internal/filters"
	"github.com/aparcar/buildboard/internal/report"
	"github.com/aparcar/buildboard/internal/urlparams"
)

// BuildersPath is the page of the builders report
const BuildersPath = "/reports/builders"

const (
	buildersApplyPath = BuildersPath + "/apply"
	buildersChartPath = BuildersPath + "/chart"
)

// reportParams are the report parameters of a query string. Zero times are
// left unresolved so that cache keys stay stable
type reportParams struct {
	branch string
	start  int64
	end    int64
}

func (s *Server) parseReportParams(p *urlparams.Params) (reportParams, error) {
	rp := reportParams{branch: s.config.DefaultBranch}
	if b, ok := p.Get("branch"); ok && b != "" {
		rp.branch = b
	}

	var err error
	if rp.start, err = unixParam(p, "starttime"); err != nil {
		return rp, err
	}
	if rp.end, err = unixParam(p, "endtime"); err != nil {
		return rp, err
	}
	return rp, nil
}

func unixParam(p *urlparams.Params, key string) (int64, error) {
	v, ok := p.Get(key)
	if !ok || v == "" {
		return 0, nil
	}
	// Fractional timestamps are truncated
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return int64(f), nil
}

// loadReport returns the builders report for rp, from the cache when possible
func (s *Server) loadReport(ctx context.Context, rp reportParams) (*report.BuildersReport, error) {
	key := report.Key{Branch: rp.branch, Start: rp.start, End: rp.end}
	return s.cache.GetOrLoad(key, func() (*report.BuildersReport, error) {
		start, end := report.GetTimeInterval(rp.start, rp.end, s.now())
		reqs, err := s.db.ListBuildRequests(ctx, rp.branch, start, end)
		if err != nil {
			return nil, err
		}

		r := report.NewBuildersReport(rp.branch, start, end)
		for _, br := range reqs {
			r.Add(br)
		}
		return r, nil
	})
}

// BuildersSession builds the filter page of the builders report at pageURL
func (s *Server) BuildersSession(ctx context.Context, pageURL string) (*dashboard.Session, error) {
	rp, err := s.parseReportParams(urlparams.Parse(pageURL))
	if err != nil {
		return nil, err
	}

	r, err := s.loadReport(ctx, rp)
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	_, query := urlparams.Split(pageURL)
	chartURL := buildersChartPath
	if query != "" {
		chartURL += "?" + query
	}

	return dashboard.NewSession(dashboard.Page{
		Title:    "Average Time per Builder: " + r.Branch,
		Branch:   r.Branch,
		Start:    r.Start,
		End:      r.End,
		URL:      pageURL,
		ApplyURL: buildersApplyPath,
		ChartURL: chartURL,
		Header:   report.Header,
		Rows:     r.Rows(),
		Columns:  s.config.Columns(),
		Options:  map[string][]string{filters.DetailLevel: report.DetailLevels},
	})
}

// handleBuildersPage handles GET /reports/builders
func (s *Server) handleBuildersPage(c *gin.Context) {
	session, err := s.BuildersSession(c.Request.Context(), c.Request.URL.RequestURI())
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to build report: %v", err)
		return
	}

	page, err := session.HTML()
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to render report: %v", err)
		return
	}

	c.Header("X-Session-ID", session.ID)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// handleBuildersApply handles GET /reports/builders/apply, the filter form
// submission, and redirects to the shareable link of the submitted filters
func (s *Server) handleBuildersApply(c *gin.Context) {
	page := c.Query(dashboard.PageField)
	if page == "" {
		page = BuildersPath
	}
	if page != BuildersPath && !strings.HasPrefix(page, BuildersPath+"?") {
		c.String(http.StatusBadRequest, "invalid page %q", page)
		return
	}

	session, err := s.BuildersSession(c.Request.Context(), page)
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to build report: %v", err)
		return
	}

	form := c.Request.URL.Query()
	selection := make(map[string][]string, len(filters.Names))
	for _, name := range filters.Names {
		selection[name] = form[name]
	}
	if err := session.Apply(selection); err != nil {
		c.String(http.StatusInternalServerError, "Failed to apply filters: %v", err)
		return
	}

	c.Redirect(http.StatusSeeOther, session.Link())
}

// handleBuildersChart handles GET /reports/builders/chart
func (s *Server) handleBuildersChart(c *gin.Context) {
	session, err := s.BuildersSession(c.Request.Context(), c.Request.URL.RequestURI())
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to build report: %v", err)
		return
	}

	var buf bytes.Buffer
	if err := charts.RenderPie(&buf, session.Points(), "Run Time per Builder"); err != nil {
		c.String(http.StatusInternalServerError, "Failed to render chart: %v", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// handleBuildersReport handles GET /api/v1/reports/builders
func (s *Server) handleBuildersReport(c *gin.Context) {
	rawURL := c.Request.URL.RequestURI()
	rp, err := s.parseReportParams(urlparams.Parse(rawURL))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := s.loadReport(c.Request.Context(), rp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report"})
		return
	}

	f := filters.ParseFromURL(filters.Names, rawURL)

	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		c.JSON(http.StatusOK, r.Summary(f))
	case "chart":
		reqID := c.Query("reqid")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.JSON(http.StatusOK, gin.H{
			"reqid":  reqID,
			"points": r.Points(f),
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown format %q", format)})
	}
}

// handleBuilderReport handles GET /api/v1/reports/builders/:buildername
func (s *Server) handleBuilderReport(c *gin.Context) {
	name := c.Param("buildername")
	rp, err := s.parseReportParams(urlparams.Parse(c.Request.URL.RequestURI()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, end := report.GetTimeInterval(rp.start, rp.end, s.now())
	reqs, err := s.db.ListBuilderRequests(c.Request.Context(), name, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get build requests"})
		return
	}

	b := report.NewBuilderTypeReport(name, start, end, true)
	for _, br := range reqs {
		b.Add(br)
	}

	c.JSON(http.StatusOK, gin.H{
		"report":      b,
		"avg":         b.Avg(),
		"ptg_results": b.PtgResults(),
	})
}

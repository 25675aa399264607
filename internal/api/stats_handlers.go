package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aparcar/buildboard/internal/charts"
	"github.com/aparcar/buildboard/internal/report"
	"github.com/aparcar/buildboard/internal/urlparams"
)

var axisCharts = map[string]func(w io.Writer, data charts.Dataset, stacked bool, title string, width, height int) error{
	"area":   charts.RenderArea,
	"line":   charts.RenderLine,
	"column": charts.RenderColumn,
	"bar":    charts.RenderBar,
}

// statsInterval reads the branch and interval of a stats query. Without
// starttime the interval covers the given number of days before endtime
func (s *Server) statsInterval(c *gin.Context) (reportParams, error) {
	rp, err := s.parseReportParams(urlparams.Parse(c.Request.URL.RequestURI()))
	if err != nil {
		return rp, err
	}

	days := 7 // default
	if d := c.Query("days"); d != "" {
		if days, err = strconv.Atoi(d); err != nil || days < 1 {
			return rp, fmt.Errorf("invalid days: %q", d)
		}
	}

	start, end := report.GetTimeInterval(rp.start, rp.end, s.now())
	if rp.start == 0 {
		start = end - int64(days)*report.Day
	}
	rp.start, rp.end = start, end
	return rp, nil
}

// runtimeDataset loads the daily run time per job type
func (s *Server) runtimeDataset(c *gin.Context) (charts.Dataset, error) {
	rp, err := s.statsInterval(c)
	if err != nil {
		return charts.Dataset{}, err
	}

	reqs, err := s.db.ListBuildRequests(c.Request.Context(), rp.branch, rp.start, rp.end)
	if err != nil {
		return charts.Dataset{}, fmt.Errorf("failed to get build requests: %w", err)
	}
	return report.DailyJobTypeRunTime(reqs), nil
}

// handleRuntimeStats handles GET /api/v1/stats/runtime
func (s *Server) handleRuntimeStats(c *gin.Context) {
	data, err := s.runtimeDataset(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"columns": data.Columns,
		"rows":    data.Rows,
	})
}

// handleRuntimeChart handles GET /charts/runtime/:kind
func (s *Server) handleRuntimeChart(c *gin.Context) {
	render, ok := axisCharts[c.Param("kind")]
	if !ok {
		c.String(http.StatusNotFound, "unknown chart kind %q", c.Param("kind"))
		return
	}

	data, err := s.runtimeDataset(c)
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to load run times: %v", err)
		return
	}

	writeChart(c, render, data, c.Query("title"))
}

// writeChart renders data with the stacked, width and height query options
func writeChart(c *gin.Context, render func(io.Writer, charts.Dataset, bool, string, int, int) error, data charts.Dataset, title string) {
	stacked, _ := strconv.ParseBool(c.Query("stacked"))
	width, _ := strconv.Atoi(c.Query("width"))
	height, _ := strconv.Atoi(c.Query("height"))

	var buf bytes.Buffer
	if err := render(&buf, data, stacked, title, width, height); err != nil {
		c.String(http.StatusInternalServerError, "Failed to render chart: %v", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// handleResultStats handles GET /api/v1/stats/results
func (s *Server) handleResultStats(c *gin.Context) {
	rp, err := s.statsInterval(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := s.db.ResultsPerDay(c.Request.Context(), rp.branch, rp.start, rp.end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get result stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"branch":    rp.branch,
		"starttime": rp.start,
		"endtime":   rp.end,
		"days":      stats,
	})
}

// queryInt reads an optional non-negative integer query parameter
func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n, nil
}

// waitTimes buckets the wait of the build requests of a stats query
func (s *Server) waitTimes(c *gin.Context) (*report.WaitTimesReport, error) {
	rp, err := s.statsInterval(c)
	if err != nil {
		return nil, err
	}
	mpb, err := queryInt(c, "mpb", report.DefaultMinutesPerBlock)
	if err != nil {
		return nil, err
	}
	if mpb == 0 {
		return nil, fmt.Errorf("invalid mpb: %q", c.Query("mpb"))
	}
	maxb, err := queryInt(c, "maxb", 0)
	if err != nil {
		return nil, err
	}
	intSize, err := queryInt(c, "int_size", 0)
	if err != nil {
		return nil, err
	}

	reqs, err := s.db.ListBuildRequests(c.Request.Context(), rp.branch, rp.start, rp.end)
	if err != nil {
		return nil, fmt.Errorf("failed to get build requests: %w", err)
	}

	wt := report.NewWaitTimesReport(rp.branch, rp.start, rp.end, mpb, maxb, int64(intSize))
	for _, br := range reqs {
		wt.Add(br)
	}
	return wt, nil
}

// handleWaitTimes handles GET /api/v1/stats/waittimes
func (s *Server) handleWaitTimes(c *gin.Context) {
	wt, err := s.waitTimes(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, wt.Summary())
}

// handleWaitTimesChart handles GET /charts/waittimes/:kind
func (s *Server) handleWaitTimesChart(c *gin.Context) {
	render, ok := axisCharts[c.Param("kind")]
	if !ok {
		c.String(http.StatusNotFound, "unknown chart kind %q", c.Param("kind"))
		return
	}

	wt, err := s.waitTimes(c)
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to load wait times: %v", err)
		return
	}

	title := c.DefaultQuery("title", charts.DefaultAreaTitle)
	writeChart(c, render, wt.Dataset(), title)
}

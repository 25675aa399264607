package api

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aparcar/buildboard/internal/web"
)

// setupWebRoutes configures the web UI routes
func (s *Server) setupWebRoutes() {
	// Serve static files
	staticFS, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("Failed to get static FS: %v", err))
	}
	s.router.StaticFS("/static", http.FS(staticFS))

	// Web UI routes
	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, BuildersPath)
	})
	s.router.GET(BuildersPath, s.handleBuildersPage)
	s.router.GET(buildersApplyPath, s.handleBuildersApply)
	s.router.GET(buildersChartPath, s.handleBuildersChart)
	s.router.GET("/charts/runtime/:kind", s.handleRuntimeChart)
	s.router.GET("/charts/waittimes/:kind", s.handleWaitTimesChart)
	s.router.GET("/stats", s.handleStatsPage)
}

// PageData holds common data for the plain pages
type PageData struct {
	Title            string
	Branch           string
	Query            template.URL
	Charts           []string
	Branches         []string
	RetentionSeconds int
}

// renderTemplate renders an HTML template
func (s *Server) renderTemplate(c *gin.Context, templateName string, data PageData) {
	// Parse templates
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"formatDuration": formatDuration,
	}).ParseFS(web.TemplatesFS, "templates/*.html")

	if err != nil {
		c.String(http.StatusInternalServerError, "Template parsing error: %v", err)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)

	err = tmpl.ExecuteTemplate(c.Writer, templateName, data)
	if err != nil {
		c.String(http.StatusInternalServerError, "Template execution error: %v", err)
	}
}

// handleStatsPage renders the run time charts of a branch
func (s *Server) handleStatsPage(c *gin.Context) {
	branches, err := s.db.ListBranches(c.Request.Context())
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to list branches: %v", err)
		return
	}

	data := PageData{
		Title:            "Run Time per Job Type",
		Branch:           c.DefaultQuery("branch", s.config.DefaultBranch),
		Query:            template.URL(c.Request.URL.RawQuery),
		Charts:           []string{"area", "line", "column", "bar"},
		Branches:         branches,
		RetentionSeconds: int(s.config.RetentionPeriod().Seconds()),
	}
	s.renderTemplate(c, "stats.html", data)
}

// formatDuration formats seconds into human-readable duration
func formatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm", seconds/60)
	}
	if seconds < 86400 {
		return fmt.Sprintf("%dh", seconds/3600)
	}
	return fmt.Sprintf("%dd", seconds/86400)
}

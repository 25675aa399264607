package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aparcar/buildboard/internal/api"
	"github.com/aparcar/buildboard/internal/db"
	"github.com/aparcar/buildboard/internal/report"
	"github.com/aparcar/buildboard/internal/urlparams"
)

var reportCmd = &cobra.Command{
	Use:   "report [query]",
	Short: "Print the builders report",
	Long: `Report prints the builders report as the dashboard shows it. The query
takes the same parameters as the report page, for example:

  buildboard report 'platform=linux-mock&detail_level=builder'`,
	Example: `  buildboard report --branch try 'job_type=talos,unittest'`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var query string
		if len(args) == 1 {
			query = strings.TrimPrefix(args[0], "?")
		}
		params := urlparams.ParseQuery(query)
		if branch, _ := cmd.Flags().GetString("branch"); branch != "" {
			params.Set("branch", branch)
		}
		pageURL := api.BuildersPath
		if params.Len() > 0 {
			pageURL += "?" + params.Encode()
		}

		database, err := db.NewDB(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer database.Close()

		server := api.NewServer(database, cfg, report.NewCache(0))
		session, err := server.BuildersSession(cmd.Context(), pageURL)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		st := newStyles(out)
		branch, ok := params.Get("branch")
		if !ok || branch == "" {
			branch = cfg.DefaultBranch
		}

		cols := cfg.Columns()
		numeric := map[int]bool{cols.Percentage: true, cols.Sum: true}
		for col := report.ColAvg; col <= report.ColTotal; col++ {
			numeric[col] = true
		}

		fmt.Fprintln(out, st.title.Render("Average Time per Builder: "+branch))
		fmt.Fprintln(out, st.renderTable(report.Header, session.VisibleRows(), numeric))
		fmt.Fprintln(out)
		fmt.Fprintln(out, st.title.Render("Run Time per Builder"))
		fmt.Fprintln(out, st.renderPoints(session.Points()))
		fmt.Fprintln(out)
		fmt.Fprintln(out, st.dim.Render("Link: "+session.Link()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("branch", "b", "", "Branch to report on (default from config)")
}

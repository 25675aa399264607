package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aparcar/buildboard/internal/db"
	"github.com/aparcar/buildboard/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import [file|url]",
	Short: "Import a build request dump",
	Long: `Import reads a JSON dump of build requests, optionally gzip or zstd
compressed, and stores it in the database. Without an argument the
configured import_url is loaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		source := cfg.ImportURL
		if len(args) == 1 {
			source = args[0]
		}
		if source == "" {
			return fmt.Errorf("no dump given and import_url is not configured")
		}

		database, err := db.NewDB(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer database.Close()

		retries, _ := cmd.Flags().GetInt("retries")
		res, err := importer.New(cfg.ImportTimeout(), retries).Load(cmd.Context(), database, source)
		if err != nil {
			return err
		}

		total, err := database.CountBuildRequests(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported %d build requests, skipped %d, %d stored\n", len(res.Requests), res.Skipped, total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Int("retries", 3, "Download retries")
}

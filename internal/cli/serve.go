package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aparcar/buildboard/internal/api"
	"github.com/aparcar/buildboard/internal/db"
	"github.com/aparcar/buildboard/internal/importer"
	"github.com/aparcar/buildboard/internal/logging"
	"github.com/aparcar/buildboard/internal/report"
	"github.com/aparcar/buildboard/internal/retention"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logging.Log.WithField("database", cfg.DatabasePath).
			WithField("branch", cfg.DefaultBranch).
			WithField("retention_days", cfg.RetentionDays).
			Info("starting buildboard")

		database, err := db.NewDB(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer database.Close()

		cache := report.NewCache(cfg.ReportCacheTTL())

		opts := retention.Options{
			Interval:  cfg.PruneInterval(),
			Retention: cfg.RetentionPeriod(),
			ImportURL: cfg.ImportURL,
		}
		if cfg.ImportURL != "" {
			retries, _ := cmd.Flags().GetInt("retries")
			opts.Loader = importer.New(cfg.ImportTimeout(), retries)
		}
		worker := retention.NewWorker(database, cache, opts)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go worker.Start(ctx)
		defer worker.Stop()

		server := api.NewServer(database, cfg, cache)
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logging.Log.Info("received shutdown signal, shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("retries", 3, "Download retries of the periodic import")
}

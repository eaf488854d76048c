package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	localstorage "github.com/JakeFAU/campus-kg-crawler/internal/storage/local"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs every Target in the
// target file through the pipeline.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every institution in the target file",
		Long: `Reads targets (JSONL {"name","website"} or CSV name,website), crawls each
site with the configured worker pool, and appends one report per target to
the report stream. Sites that fail certificate verification are recorded in
the ledger and skipped on later runs.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
	cmd.Flags().String("targets", "", "target file, overrides crawler.targets_file")
	cmd.Flags().Int("workers", 0, "number of concurrent workers, overrides crawler.workers")
	cmd.Flags().Bool("resume", false, "skip websites already completed in the status file")
	cmd.Flags().String("report", "", "report stream path, overrides output.report_path")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	targets, err := localstorage.LoadTargets(cfg.Crawler.TargetsFile)
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	metricsDone := make(chan error, 1)
	go func() {
		metricsDone <- appInstance.ServeMetrics(ctx)
	}()

	summary, err := appInstance.Crawl(ctx, targets)
	cancel()
	if merr := <-metricsDone; merr != nil {
		logger.Warn("metrics listener failed", zap.Error(merr))
	}
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %d targets, %d completed, %d skipped, %d failed; reports in %s\n",
		summary.RunID,
		summary.Targets,
		summary.Counts[crawler.RoutingSuccess],
		summary.Counts[crawler.RoutingSkipped],
		summary.Counts[crawler.RoutingFailed],
		summary.ReportPath,
	)
	return err
}

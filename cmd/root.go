// Package cmd defines the CLI commands of the campus-kg-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/app"
	"github.com/JakeFAU/campus-kg-crawler/internal/chunker"
	"github.com/JakeFAU/campus-kg-crawler/internal/config"
	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the slice of *app.App the commands use. Tests inject fakes.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Ledger() crawler.Ledger
	Chunker() *chunker.Chunker
	Crawl(ctx context.Context, source crawler.TargetSource) (app.Summary, error)
	ServeMetrics(ctx context.Context) error
}

// appFactory builds the App once config and logger are ready.
type appFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error)

func defaultAppFactory(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newRootCmd creates the root command. Subcommands find the App in their
// context after PersistentPreRunE.
func newRootCmd(factory appFactory) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "campus-kg-crawler",
		Short: "Crawls institution websites into a knowledge graph of triples.",
		Long: `campus-kg-crawler visits each institution's public website, discovers
its program and career pages, and extracts (head, relation, tail) triples
into an append-only JSONL report stream.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyFlagOverrides(cmd, &cfg); err != nil {
				return err
			}
			logger, err := logging.NewWithOptions(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := factory(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newLedgerCmd())
	cmd.AddCommand(newChunkCmd())
	return cmd
}

// applyFlagOverrides copies explicitly set subcommand flags over cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if f := flags.Lookup("targets"); f != nil && f.Changed {
		cfg.Crawler.TargetsFile = f.Value.String()
	}
	if f := flags.Lookup("workers"); f != nil && f.Changed {
		n, err := flags.GetInt("workers")
		if err != nil {
			return fmt.Errorf("read --workers: %w", err)
		}
		cfg.Crawler.Workers = n
	}
	if f := flags.Lookup("resume"); f != nil && f.Changed {
		resume, err := flags.GetBool("resume")
		if err != nil {
			return fmt.Errorf("read --resume: %w", err)
		}
		cfg.Crawler.Resume = resume
	}
	if f := flags.Lookup("report"); f != nil && f.Changed {
		cfg.Output.ReportPath = f.Value.String()
	}
	return cfg.Validate()
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(defaultAppFactory).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

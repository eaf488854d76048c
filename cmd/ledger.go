package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/ledger"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or edit the failed-site ledger",
	}
	cmd.AddCommand(newLedgerListCmd(), newLedgerCheckCmd(), newLedgerResetCmd())
	return cmd
}

func parseCategory(raw string) (crawler.FailureCategory, error) {
	category := crawler.FailureCategory(raw)
	if err := ledger.CheckCategory(category); err != nil {
		return "", err
	}
	return category, nil
}

func newLedgerListCmd() *cobra.Command {
	var categoryFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries, optionally for one category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			categories := crawler.FailureCategories
			if categoryFlag != "" {
				category, err := parseCategory(categoryFlag)
				if err != nil {
					return err
				}
				categories = []crawler.FailureCategory{category}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tWEBSITE\tNAME\tRETRIES\tLAST CHECKED\tSKIP")
			total := 0
			for _, category := range categories {
				records, err := appInstance.Ledger().List(cmd.Context(), category)
				if err != nil {
					return fmt.Errorf("list %s: %w", category, err)
				}
				for _, rec := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%t\n",
						category, rec.Website, rec.Name, rec.RetryCount,
						rec.LastCheckedAt.Format(time.RFC3339), rec.Skip)
					total++
				}
			}
			if err := tw.Flush(); err != nil {
				return fmt.Errorf("write ledger table: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d entries\n", total)
			return err
		},
	}
	cmd.Flags().StringVar(&categoryFlag, "category", "", "ledger category (ssl_verification_failed, robots_blocked, timeout_failed)")
	return cmd
}

func newLedgerCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <website>",
		Short: "Report whether a website would be skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			skip, reason, err := appInstance.Ledger().ShouldSkip(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("check ledger: %w", err)
			}
			if skip {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "skip %s: %s\n", args[0], reason)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok %s: not in the ledger\n", args[0])
			return err
		},
	}
}

func newLedgerResetCmd() *cobra.Command {
	var categoryFlag string
	cmd := &cobra.Command{
		Use:   "reset <website>",
		Short: "Remove a website from a ledger category so it is crawled again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			category, err := parseCategory(categoryFlag)
			if err != nil {
				return err
			}
			if err := appInstance.Ledger().Reset(cmd.Context(), category, args[0]); err != nil {
				return fmt.Errorf("reset ledger: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "reset %s in %s\n", args[0], category)
			return err
		},
	}
	cmd.Flags().StringVar(&categoryFlag, "category", string(crawler.FailureSSL), "ledger category")
	return cmd
}

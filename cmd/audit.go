package cmd

import (
	"context"
	"fmt"

	"crm-sync/feature/audit"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	auditStart string
	auditEnd   string
)

// auditCmd audits one change window of a record type.
var auditCmd = &cobra.Command{
	Use:   "audit <record-type>",
	Short: "Audit a change window for discrepancies",
	Long: `Compares every record changed in the window on either side and reports
discrepancies. The run is stored in the run history and, when storage is
enabled, archived as a JSON report.

Examples:
  audit Contact --start 2024-01-01T00:00:00Z
  audit Lead --start 2024-01-01T00:00:00Z --end 2024-01-02T00:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditStart, "start", "", "Window start (RFC3339)")
	auditCmd.Flags().StringVar(&auditEnd, "end", "", "Window end (RFC3339, default now)")
	RootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	start, end, err := parseWindow(auditStart, auditEnd)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	reports, err := a.reportStore(ctx)
	if err != nil {
		return err
	}

	service := audit.NewService(a.integration, a.history, reports, a.cfg.Storage.Bucket, a.logger)
	result, err := service.Run(ctx, args[0], start, end)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}
	logAudit(a.logger, result)

	if keep := a.cfg.Sync.ReportRetention; keep > 0 {
		if _, err := service.Prune(ctx, args[0], keep); err != nil {
			a.logger.Warn("Failed to prune audit reports", zap.Error(err))
		}
	}
	return nil
}

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"crm-sync/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reconcileStart  string
	reconcileEnd    string
	reconcileDryRun bool
	yesConfirm      bool
)

// reconcileCmd audits a window and applies the default resolutions to what it finds.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile <record-type>",
	Short: "Audit a window and resolve its discrepancies",
	Long: `Audits the window, plans one resolution per discrepancy and applies the plan.

Local records without a remote id are pushed, remote records missing locally
are pulled and local records deleted remotely are removed. Field mismatches
are reported but left for an operator to resolve.

Examples:
  # Report and plan only
  reconcile Contact --start 2024-01-01T00:00:00Z --dry-run

  # Apply with interactive confirmation
  reconcile Contact --start 2024-01-01T00:00:00Z

  # Apply with auto-confirm (non-interactive)
  reconcile Contact --start 2024-01-01T00:00:00Z --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileStart, "start", "", "Window start (RFC3339)")
	reconcileCmd.Flags().StringVar(&reconcileEnd, "end", "", "Window end (RFC3339, default now)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "Force dry-run (no mutations even with --yes)")
	reconcileCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	start, end, err := parseWindow(reconcileStart, reconcileEnd)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	l := a.logger

	engine, err := a.integration.Engine(args[0])
	if err != nil {
		return err
	}

	// Step 1: Audit
	l.Info("Auditing window...")
	result, err := engine.AuditWindow(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to audit window: %w", err)
	}
	logAudit(l, result)

	// Step 2: Plan
	plan := reconcile.BuildPlan(result, reconcile.DefaultPolicy())
	printPlan(l, plan)

	if len(plan.Actions) == 0 {
		l.Info("No actions required.")
		return nil
	}
	if reconcileDryRun {
		l.Info("Dry-run mode: No changes were made.")
		return nil
	}

	// Step 3: Apply (if confirmed)
	if !confirmDestructiveAction(cmd) {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	l.Info("Applying actions...")
	executed, err := reconcile.ApplyPlan(ctx, engine.Resolver(), plan, reconcile.ApplyOptions{Confirmed: true})
	l.Info("Executed actions", zap.Int("count", executed), zap.Int("planned", len(plan.Actions)))
	if err != nil {
		return fmt.Errorf("failed to apply plan: %w", err)
	}
	return nil
}

// printPlan logs the plan summary and a sample of its actions.
func printPlan(l *zap.Logger, plan *reconcile.ResolutionPlan) {
	s := plan.Summary
	l.Info("Planned actions",
		zap.Int("push_actions", s.PushActions),
		zap.Int("pull_actions", s.PullActions),
		zap.Int("delete_actions", s.DeleteActions),
		zap.Int("unresolved", s.Unresolved),
		zap.Int("total_actions", len(plan.Actions)),
	)

	maxShow := min(5, len(plan.Actions))
	for _, action := range plan.Actions[:maxShow] {
		l.Info("Sample action",
			zap.String("type", string(action.Type)),
			zap.String("discrepancy", string(action.Discrepancy)),
			zap.Int64("local_id", action.Target.LocalID),
			zap.String("remote_id", action.Target.RemoteID),
		)
	}
	if len(plan.Actions) > maxShow {
		l.Info("Additional actions not shown", zap.Int("count", len(plan.Actions)-maxShow))
	}
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction(cmd *cobra.Command) bool {
	out := cmd.OutOrStdout()
	if yesConfirm {
		fmt.Fprintln(out, "\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Fprint(out, "\n⚠️  Type 'yes' to confirm destructive actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}

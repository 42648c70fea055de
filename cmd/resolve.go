package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"crm-sync/feature/conflicts"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	resolveLocalID    int64
	resolveRemoteID   string
	resolveResolution string
	resolveLocalAttrs []string
	resolveRemoteAttr []string
	resolveShowOnly   bool
)

// resolveCmd runs a conflict resolution against one record pair.
var resolveCmd = &cobra.Command{
	Use:   "resolve <record-type>",
	Short: "Resolve a conflict between a local and a remote record",
	Long: `Runs one of remote_push, remote_pull, local_delete or merge against the
record pair identified by --local-id or --remote-id.

A merge pushes the --local-attr fields and pulls the --remote-attr fields, both
named as remote fields. Both flags are required for a merge; pass them empty
to move no fields in that direction.

Examples:
  resolve Contact --remote-id 003xx --show
  resolve Contact --remote-id 003xx --resolution remote_pull
  resolve Contact --local-id 42 --resolution merge --local-attr Email --remote-attr Phone`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().Int64Var(&resolveLocalID, "local-id", 0, "Local record id")
	resolveCmd.Flags().StringVar(&resolveRemoteID, "remote-id", "", "Remote record id")
	resolveCmd.Flags().StringVar(&resolveResolution, "resolution", "", "remote_push, remote_pull, local_delete or merge")
	resolveCmd.Flags().StringSliceVar(&resolveLocalAttrs, "local-attr", nil, "Fields to push on merge")
	resolveCmd.Flags().StringSliceVar(&resolveRemoteAttr, "remote-attr", nil, "Fields to pull on merge")
	resolveCmd.Flags().BoolVar(&resolveShowOnly, "show", false, "Print the conflict classification and exit")
	RootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	recordType := args[0]

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	service := conflicts.NewService(a.integration, a.runner, a.logger)

	if resolveShowOnly {
		if resolveRemoteID == "" {
			return fmt.Errorf("--show needs --remote-id")
		}
		class, err := service.Conflict(ctx, recordType, resolveRemoteID)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(class, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	}

	req := conflicts.ResolveRequest{
		LocalID:    resolveLocalID,
		RemoteID:   resolveRemoteID,
		Resolution: resolveResolution,
	}
	// Unset flags stay nil so a merge can tell "not given" from "no fields".
	if cmd.Flags().Changed("local-attr") {
		req.LocalAttributes = nonNil(resolveLocalAttrs)
	}
	if cmd.Flags().Changed("remote-attr") {
		req.RemoteAttributes = nonNil(resolveRemoteAttr)
	}

	if err := service.Resolve(ctx, recordType, req); err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}
	a.logger.Info("Conflict resolved",
		zap.String("record_type", recordType),
		zap.String("resolution", resolveResolution),
	)
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

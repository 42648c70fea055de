package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	partitionStart string
	partitionEnd   string
)

// partitionCmd prints the partitions an audit or poll of the window would process.
var partitionCmd = &cobra.Command{
	Use:   "partition <record-type>",
	Short: "Print the partitions of a change window as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runPartition,
}

func init() {
	partitionCmd.Flags().StringVar(&partitionStart, "start", "", "Window start (RFC3339)")
	partitionCmd.Flags().StringVar(&partitionEnd, "end", "", "Window end (RFC3339, default now)")
	RootCmd.AddCommand(partitionCmd)
}

func runPartition(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	start, end, err := parseWindow(partitionStart, partitionEnd)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	engine, err := a.integration.Engine(args[0])
	if err != nil {
		return err
	}
	parts, err := engine.Partition(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to partition window: %w", err)
	}
	a.logger.Info("Partitioned window", zap.String("record_type", args[0]), zap.Int("partitions", len(parts)))

	out, err := json.MarshalIndent(parts, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

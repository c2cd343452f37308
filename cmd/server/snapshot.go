package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func getSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Refresh the local SQLite snapshot from the release",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runSnapshot(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Data.SnapshotPath == "" {
		return fmt.Errorf("data.snapshot_path is not configured")
	}
	acc, err := newAccessor(ctx, cfg.Data, true)
	if err != nil {
		return err
	}
	defer acc.Close()

	sets, samples, err := acc.snapshot.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh snapshot: %w", err)
	}
	fmt.Fprintf(out, "Snapshot %s: %d sample sets, %d samples\n", cfg.Data.SnapshotPath, sets, samples)
	return nil
}

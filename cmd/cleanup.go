package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCleanupCommand removes stale pending subscriptions. Intended to run
// from cron.
func NewCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-pending",
		Short: "Delete pending subscriptions whose payment never arrived",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			config, err := LoadConfig()
			if err != nil {
				return err
			}

			deps, err := BuildAppDependencies(ctx, config)
			if err != nil {
				return err
			}
			defer deps.Close()

			deleted, err := deps.PackageManager.CleanupPending(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Deleted %d stale pending subscription(s)\n", deleted)
			return nil
		},
	}
}

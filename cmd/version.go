package main

import (
	"fmt"

	"github.com/bdmouza/mouzadrive/internal/version"

	"github.com/spf13/cobra"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()

			fmt.Printf("mouzadrive %s\n", info.Version)
			if info.GitCommit != "" {
				fmt.Printf("  commit: %s\n", info.GitCommit)
			}
			if info.BuildDate != "" {
				fmt.Printf("  built:  %s\n", info.BuildDate)
			}
			fmt.Printf("  go:     %s (%s)\n", info.GoVersion, info.Platform)
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mouzadrive",
		Short: "BD Mouza backend service",
		Long: `Mouzadrive serves the BD Mouza marketplace: browsing and searching mouza
map files on the shared drive, previews and format conversion, payments and
subscription packages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewCleanupCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

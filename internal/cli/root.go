// Package cli wires the repository core into a cobra command tree. Everything
// here is thin glue: argument parsing, message formatting, and collaborator
// construction.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the jj command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "jj",
		Short:         "A local version-control engine with first-class history rewriting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("repository", "R", ".", "path to the workspace root")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newNewCmd())
	rootCmd.AddCommand(newSplitCmd())
	rootCmd.AddCommand(newColocateCmd())
	rootCmd.AddCommand(newLogCmd())
	return rootCmd
}

// Execute runs the command tree and maps errors to the process exit code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func workspaceRoot(cmd *cobra.Command) string {
	root, _ := cmd.Flags().GetString("repository")
	if root == "" {
		root = "."
	}
	return root
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AngelEzquerra/jj/internal/repo"
)

func newLogCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "op-log",
		Short: "Show the operation history of the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(workspaceRoot(cmd))
			if err != nil {
				return err
			}
			ops, err := r.Operations(limit)
			if err != nil {
				return err
			}
			for _, op := range ops {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", op.Timestamp.Local().Format("2006-01-02 15:04:05"), op.Description)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of operations to show")
	return cmd
}

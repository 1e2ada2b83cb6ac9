package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AngelEzquerra/jj/internal/colocate"
)

func newColocateCmd() *cobra.Command {
	var (
		enable  bool
		disable bool
	)
	cmd := &cobra.Command{
		Use:   "colocate",
		Short: "Manage repository colocation with git",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return fmt.Errorf("cannot specify both --enable and --disable flags")
			}
			root := workspaceRoot(cmd)
			out := cmd.OutOrStdout()

			switch {
			case enable:
				if colocate.IsColocated(root) {
					fmt.Fprintln(out, "Repository is already co-located with git.")
					return nil
				}
				if err := colocate.Enable(root); err != nil {
					return err
				}
				fmt.Fprintln(out, "Repository successfully converted into a co-located repository.")
			case disable:
				if !colocate.IsColocated(root) {
					fmt.Fprintln(out, "Repository is already not co-located with git.")
					return nil
				}
				if err := colocate.Disable(root); err != nil {
					return err
				}
				fmt.Fprintln(out, "Repository successfully converted into a non co-located repository.")
			default:
				if colocate.IsColocated(root) {
					fmt.Fprintln(out, "Repository is currently co-located with git")
					fmt.Fprintln(out, "To disable co-location, run: jj colocate --disable")
				} else {
					fmt.Fprintln(out, "Repository is currently not co-located with git")
					fmt.Fprintln(out, "To enable co-location, run: jj colocate --enable")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "convert into a co-located repository")
	cmd.Flags().BoolVar(&disable, "disable", false, "convert into a non co-located repository")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/repo"
	"github.com/AngelEzquerra/jj/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new repository in the workspace root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := workspaceRoot(cmd)
			if _, err := repo.Init(root); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized repo in %q\n", root)
			return nil
		},
	}
}

func newNewCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new, empty commit on top of the working copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(workspaceRoot(cmd))
			if err != nil {
				return err
			}
			wc, err := r.Resolve("@")
			if err != nil {
				return err
			}
			parent, err := r.GetCommit(wc)
			if err != nil {
				return err
			}
			tx, err := r.StartTransaction()
			if err != nil {
				return err
			}
			c, err := tx.NewCommit([]gocid.Cid{parent.ID}, parent.TreeID, message).Write()
			if err != nil {
				return err
			}
			tx.Edit(repo.DefaultWorkspace, c)
			if err := tx.Finish(fmt.Sprintf("new empty commit on %s", store.IDToName(parent.ID))); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Working copy now at: %s\n", store.ShortName(c.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "description for the new commit")
	return cmd
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AngelEzquerra/jj/internal/config"
	"github.com/AngelEzquerra/jj/internal/repo"
	"github.com/AngelEzquerra/jj/internal/store"
)

func newSplitCmd() *cobra.Command {
	var (
		revision string
		parallel bool
		message  string
	)
	cmd := &cobra.Command{
		Use:   "split [PATHS...]",
		Short: "Split a revision in two",
		Long: "Split a revision in two. Files matching any of the given paths are put\n" +
			"in the first commit; the remaining changes go in the second commit. With\n" +
			"no paths, all changes are selected and the second commit will be empty.",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := workspaceRoot(cmd)
			r, err := repo.Open(root)
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			target, err := r.Resolve(revision)
			if err != nil {
				return err
			}

			var matcher repo.PathMatcher
			if len(args) > 0 {
				matcher = repo.MatchPaths(args)
			}
			var editor repo.DescriptionEditor = repo.PassthroughEditor{}
			if cmd.Flags().Changed("message") {
				editor = &repo.StaticEditor{Text: message}
			}

			result, err := r.Split(cfg, repo.SplitOptions{
				Target:   target,
				Matcher:  matcher,
				Selector: &repo.FilesetSelector{Repo: r},
				Editor:   editor,
				Parallel: parallel,
			})
			if err != nil {
				if errors.Is(err, repo.ErrEmptyCommit) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Hint: Use `jj new` if you want to create another empty commit.")
				}
				return err
			}

			for _, w := range result.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			if result.NumRebased > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Rebased %d descendant commits\n", result.NumRebased)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "First part: %s %s\n", store.ShortName(result.First.ID), summaryLine(result.First.Description))
			fmt.Fprintf(cmd.OutOrStdout(), "Second part: %s %s\n", store.ShortName(result.Second.ID), summaryLine(result.Second.Description))
			return nil
		},
	}
	cmd.Flags().StringVarP(&revision, "revision", "r", "@", "the revision to split")
	cmd.Flags().BoolVarP(&parallel, "parallel", "p", false, "split into two parallel revisions instead of a parent and child")
	cmd.Flags().StringVarP(&message, "message", "m", "", "use the given message for both parts instead of editing")
	return cmd
}

func summaryLine(description string) string {
	if description == "" {
		return "(no description set)"
	}
	for i, c := range description {
		if c == '\n' {
			return description[:i]
		}
	}
	return description
}

package repo

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/config"
	"github.com/AngelEzquerra/jj/internal/store"
)

// SplitOptions drives one split operation.
type SplitOptions struct {
	Target   gocid.Cid
	Matcher  PathMatcher // nil selects everything
	Selector DiffSelector
	Editor   DescriptionEditor
	// Parallel splits into two sibling commits instead of a parent and child.
	Parallel bool
}

// SplitResult summarizes a completed split.
type SplitResult struct {
	First      *Commit
	Second     *Commit
	NumRebased int
	Warnings   []string
}

// RemapPolicy decides how descendants of the split commit are re-parented.
// The cascade consumes it polymorphically so new policies never touch the
// traversal logic.
type RemapPolicy interface {
	Apply(rw *Rewriter)
}

// linearPolicy makes the second commit the sole successor; the first commit
// is its parent and is not directly reachable by old descendants.
type linearPolicy struct {
	first, second gocid.Cid
}

func (p linearPolicy) Apply(rw *Rewriter) {
	rw.ReplaceParent(p.first, p.second)
}

// parallelPolicy re-parents descendants onto both new commits.
type parallelPolicy struct {
	first, second gocid.Cid
}

func (p parallelPolicy) Apply(rw *Rewriter) {
	rw.ReplaceParent(p.first, p.first, p.second)
}

// parallelLegacyPolicy is the parallel case when the legacy rewrite record is
// registered: the old commit already resolves to the second commit, which is
// the anchor for replacement.
type parallelLegacyPolicy struct {
	first, second gocid.Cid
}

func (p parallelLegacyPolicy) Apply(rw *Rewriter) {
	rw.ReplaceParent(p.second, p.first, p.second)
}

func remapPolicyFor(parallel, legacy bool, first, second gocid.Cid) RemapPolicy {
	switch {
	case parallel && legacy:
		return parallelLegacyPolicy{first: first, second: second}
	case parallel:
		return parallelPolicy{first: first, second: second}
	default:
		return linearPolicy{first: first, second: second}
	}
}

// Split partitions the target commit's changes into two commits and repairs
// everything downstream: descendants are rebased, working-copy pointers on
// the target are redirected to the second commit, and the whole batch commits
// atomically. On any error nothing is persisted.
func (r *Repository) Split(cfg config.Config, opts SplitOptions) (*SplitResult, error) {
	target, err := r.GetCommit(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("resolve target: %w", err)
	}
	empty, err := r.IsEmpty(target)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, fmt.Errorf("refusing to split commit %s: %w", store.ShortName(target.ID), ErrEmptyCommit)
	}

	tx, err := r.StartTransaction()
	if err != nil {
		return nil, err
	}
	if err := tx.CheckRewritable(target.ID, cfg.Revset.ImmutableBookmarks); err != nil {
		return nil, err
	}

	endTree, err := r.GetTree(target.TreeID)
	if err != nil {
		return nil, fmt.Errorf("read target tree: %w", err)
	}
	baseTreeID, err := r.parentTreeID(target)
	if err != nil {
		return nil, err
	}
	baseTree, err := r.GetTree(baseTreeID)
	if err != nil {
		return nil, fmt.Errorf("read base tree: %w", err)
	}

	instructions := fmt.Sprintf(
		"You are splitting a commit into two: %s\n\n"+
			"The diff initially shows the changes in the commit you're splitting.\n\n"+
			"Adjust the right side until it shows the contents you want for the first commit.\n"+
			"The remainder will be in the second commit.\n",
		store.ShortName(target.ID))
	selectedTreeID, err := opts.Selector.Select(baseTree, endTree, opts.Matcher, instructions)
	if err != nil {
		return nil, fmt.Errorf("select changes: %w", err)
	}

	var warnings []string
	switch selectedTreeID {
	case target.TreeID:
		warnings = append(warnings, "All changes have been selected, so the second commit will be empty")
	case baseTreeID:
		warnings = append(warnings, "No changes have been selected, so the first commit will be empty")
	}

	// First commit: the changes the user selected.
	firstBuilder := tx.RewriteCommit(target).SetTreeID(selectedTreeID)
	if firstBuilder.Description() == "" {
		firstBuilder.SetDescription(cfg.UI.DefaultDescription)
	}
	tempFirst, err := firstBuilder.WriteHidden()
	if err != nil {
		return nil, fmt.Errorf("write first commit: %w", err)
	}
	description, err := editDescription(opts.Editor, descriptionTemplate("Enter a description for the first commit.", tempFirst))
	if err != nil {
		return nil, err
	}
	first, err := firstBuilder.SetDescription(description).Write()
	if err != nil {
		return nil, fmt.Errorf("write first commit: %w", err)
	}

	// Second commit: everything the user didn't select. In parallel mode the
	// complement tree merges the end tree with the parent tree using the
	// selected tree as the merge base; otherwise the second commit keeps the
	// full end tree and sits on top of the first.
	secondTreeID := target.TreeID
	secondParents := []gocid.Cid{first.ID}
	if opts.Parallel {
		secondTreeID, err = r.MergeTrees(target.TreeID, baseTreeID, selectedTreeID)
		if err != nil {
			return nil, fmt.Errorf("compute complement tree: %w", err)
		}
		secondParents = target.Parents
	}
	secondBuilder := tx.RewriteCommit(target).
		SetParents(secondParents).
		SetTreeID(secondTreeID).
		// A fresh change id so the commit being split doesn't become
		// divergent: the original logical change lives on as the second
		// commit.
		GenerateNewChangeID()
	if target.Description == "" {
		// The target had no description, so don't ask for one.
		secondBuilder.SetDescription("")
	} else {
		tempSecond, err := secondBuilder.WriteHidden()
		if err != nil {
			return nil, fmt.Errorf("write second commit: %w", err)
		}
		description, err := editDescription(opts.Editor, descriptionTemplate("Enter a description for the second commit.", tempSecond))
		if err != nil {
			return nil, err
		}
		secondBuilder.SetDescription(description)
	}
	second, err := secondBuilder.Write()
	if err != nil {
		return nil, fmt.Errorf("write second commit: %w", err)
	}

	if secondTree, err := r.GetTree(second.TreeID); err == nil && secondTree.HasConflicts() {
		warnings = append(warnings, "The second commit contains conflicts")
	}

	legacy := cfg.Split.LegacyBookmarkBehavior
	if legacy {
		// Mark the commit being split as rewritten to the second commit, so
		// bookmarks pointing to it follow through to the second commit.
		tx.SetRewritten(target.ID, second.ID)
	}

	policy := remapPolicyFor(opts.Parallel, legacy, first.ID, second.ID)
	numRebased, err := tx.TransformDescendants([]gocid.Cid{target.ID}, func(rw *Rewriter) error {
		policy.Apply(rw)
		b, err := rw.Rebase()
		if err != nil {
			return err
		}
		_, err = b.Write()
		return err
	})
	if err != nil {
		return nil, err
	}

	// Move the working copy to the second commit for any workspace where the
	// target commit was checked out.
	for _, ws := range tx.BaseView().WorkspaceIDs() {
		if tx.BaseView().WCCommits[ws] == target.ID {
			tx.Edit(ws, second)
		}
	}

	if err := tx.Finish(fmt.Sprintf("split commit %s", store.IDToName(target.ID))); err != nil {
		return nil, err
	}
	return &SplitResult{
		First:      first,
		Second:     second,
		NumRebased: numRebased,
		Warnings:   warnings,
	}, nil
}

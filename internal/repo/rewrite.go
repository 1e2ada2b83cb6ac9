package repo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/store"
)

// CommitBuilder constructs a replacement for a single commit, or a brand-new
// one. Unspecified fields are copied from the source. Writing is append-only
// and idempotent at the content-hash level, but every Write still routes
// through the view's live-set bookkeeping.
type CommitBuilder struct {
	tx            *Transaction
	source        *Commit // nil for brand-new commits
	parents       []gocid.Cid
	treeID        gocid.Cid
	changeID      string
	description   string
	predecessors  []gocid.Cid
	freshChangeID bool
}

// RewriteCommit starts a builder that replaces source. The result records
// source as its predecessor, which is also what makes an otherwise-identical
// rewrite hash differently from its source.
func (tx *Transaction) RewriteCommit(source *Commit) *CommitBuilder {
	return &CommitBuilder{
		tx:           tx,
		source:       source,
		parents:      append([]gocid.Cid(nil), source.Parents...),
		treeID:       source.TreeID,
		changeID:     source.ChangeID,
		description:  source.Description,
		predecessors: []gocid.Cid{source.ID},
	}
}

// NewCommit starts a builder for a brand-new commit with a fresh change
// identity.
func (tx *Transaction) NewCommit(parents []gocid.Cid, treeID gocid.Cid, description string) *CommitBuilder {
	return &CommitBuilder{
		tx:          tx,
		parents:     append([]gocid.Cid(nil), parents...),
		treeID:      treeID,
		changeID:    uuid.NewString(),
		description: description,
	}
}

// SetParents replaces the builder's parent list.
func (b *CommitBuilder) SetParents(parents []gocid.Cid) *CommitBuilder {
	b.parents = append([]gocid.Cid(nil), parents...)
	return b
}

// SetTreeID replaces the builder's tree.
func (b *CommitBuilder) SetTreeID(treeID gocid.Cid) *CommitBuilder {
	b.treeID = treeID
	return b
}

// SetDescription replaces the builder's description.
func (b *CommitBuilder) SetDescription(description string) *CommitBuilder {
	b.description = description
	return b
}

// Description returns the builder's current description.
func (b *CommitBuilder) Description() string {
	return b.description
}

// GenerateNewChangeID mints a fresh change identity so the result is never
// considered divergent with its source.
func (b *CommitBuilder) GenerateNewChangeID() *CommitBuilder {
	b.changeID = uuid.NewString()
	b.freshChangeID = true
	return b
}

func (b *CommitBuilder) build() *Commit {
	c := &Commit{
		Parents:      append([]gocid.Cid(nil), b.parents...),
		TreeID:       b.treeID,
		ChangeID:     b.changeID,
		Description:  b.description,
		Predecessors: append([]gocid.Cid(nil), b.predecessors...),
	}
	if b.source != nil {
		c.Timestamp = b.source.Timestamp
	} else {
		c.Timestamp = time.Now().UTC()
	}
	return c
}

// WriteHidden stores the commit without touching the view. Used to render
// description templates before the real write.
func (b *CommitBuilder) WriteHidden() (*Commit, error) {
	c := b.build()
	if err := b.tx.repo.writeCommit(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Write stores the commit and updates the transaction's live-set bookkeeping:
// the new commit becomes a head, its parents and predecessors stop being
// heads, and (unless a fresh change id was minted) the source is recorded as
// rewritten to it.
func (b *CommitBuilder) Write() (*Commit, error) {
	c := b.build()
	if err := b.tx.repo.writeCommit(c); err != nil {
		return nil, err
	}
	view := b.tx.view
	view.AddHead(c.ID)
	for _, p := range c.Parents {
		view.RemoveHead(p)
	}
	for _, pred := range c.Predecessors {
		view.RemoveHead(pred)
	}
	if b.source != nil && !b.freshChangeID {
		b.tx.parentMapping[b.source.ID] = []gocid.Cid{c.ID}
	}
	return c, nil
}

// Rewriter is the single-commit rebase step used by the cascade. It holds the
// commit being rebased and its prospective parent list, already remapped
// through the transaction's accumulated rewrites.
type Rewriter struct {
	tx         *Transaction
	old        *Commit
	newParents []gocid.Cid
}

func (tx *Transaction) newRewriter(old *Commit) *Rewriter {
	var parents []gocid.Cid
	for _, p := range old.Parents {
		if mapped, ok := tx.parentMapping[p]; ok {
			parents = append(parents, mapped...)
		} else {
			parents = append(parents, p)
		}
	}
	return &Rewriter{tx: tx, old: old, newParents: dedupeIDs(parents)}
}

// OldCommit returns the commit being rebased.
func (rw *Rewriter) OldCommit() *Commit {
	return rw.old
}

// NewParents returns the current prospective parent list.
func (rw *Rewriter) NewParents() []gocid.Cid {
	return append([]gocid.Cid(nil), rw.newParents...)
}

// ReplaceParent replaces every occurrence of old in the prospective parent
// list with the given replacements, supporting 1-to-many edges.
func (rw *Rewriter) ReplaceParent(old gocid.Cid, replacements ...gocid.Cid) {
	var out []gocid.Cid
	for _, p := range rw.newParents {
		if p == old {
			out = append(out, replacements...)
		} else {
			out = append(out, p)
		}
	}
	rw.newParents = dedupeIDs(out)
}

// parentsChanged reports whether the number or identity of parents differs
// from the old commit, which is what changes the merge base.
func (rw *Rewriter) parentsChanged() bool {
	if len(rw.newParents) != len(rw.old.Parents) {
		return true
	}
	for i, p := range rw.newParents {
		if p != rw.old.Parents[i] {
			return true
		}
	}
	return false
}

// Rebase produces a builder for the rebased commit. The tree is recomputed
// through the merge engine only when the parent set actually changed:
// new tree = merge(old tree, merged new parent trees, merged old parent trees).
func (rw *Rewriter) Rebase() (*CommitBuilder, error) {
	b := rw.tx.RewriteCommit(rw.old).SetParents(rw.newParents)
	if !rw.parentsChanged() {
		return b, nil
	}
	r := rw.tx.repo
	oldBase, err := r.mergedParentTree(rw.old.Parents)
	if err != nil {
		return nil, fmt.Errorf("rebase %s: %w", store.ShortName(rw.old.ID), err)
	}
	newBase, err := r.mergedParentTree(rw.newParents)
	if err != nil {
		return nil, fmt.Errorf("rebase %s: %w", store.ShortName(rw.old.ID), err)
	}
	if oldBase == newBase {
		return b, nil
	}
	newTree, err := r.MergeTrees(rw.old.TreeID, newBase, oldBase)
	if err != nil {
		return nil, fmt.Errorf("rebase %s: %w", store.ShortName(rw.old.ID), err)
	}
	b.SetTreeID(newTree)
	return b, nil
}

// mergedParentTree folds the parents' trees into one, merging each additional
// parent against the empty tree as base.
func (r *Repository) mergedParentTree(parents []gocid.Cid) (gocid.Cid, error) {
	if len(parents) == 0 {
		return r.emptyTreeID, nil
	}
	first, err := r.GetCommit(parents[0])
	if err != nil {
		return store.CidUndef, err
	}
	acc := first.TreeID
	for _, p := range parents[1:] {
		c, err := r.GetCommit(p)
		if err != nil {
			return store.CidUndef, err
		}
		acc, err = r.MergeTrees(acc, c.TreeID, r.emptyTreeID)
		if err != nil {
			return store.CidUndef, err
		}
	}
	return acc, nil
}

func dedupeIDs(ids []gocid.Cid) []gocid.Cid {
	seen := map[gocid.Cid]bool{}
	var out []gocid.Cid
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

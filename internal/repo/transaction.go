package repo

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/store"
)

// Transaction owns a mutable copy of the view for the duration of one logical
// operation. Exactly one transaction mutates a view at a time; objects written
// through it stay invisible until Finish swings the op_head pointer, so an
// abandoned transaction leaves the repository untouched.
type Transaction struct {
	repo *Repository
	base *View // snapshot at transaction start, never mutated
	view *View

	// parentMapping records every rewrite made in this transaction:
	// old commit id -> its replacement(s). The cascade extends it as
	// descendants are rewritten, and bookmark following consumes it when the
	// transaction finishes.
	parentMapping map[gocid.Cid][]gocid.Cid

	finished bool
}

// StartTransaction loads the current view and begins a transaction on it.
func (r *Repository) StartTransaction() (*Transaction, error) {
	view, err := r.View()
	if err != nil {
		return nil, fmt.Errorf("start transaction: %w", err)
	}
	return &Transaction{
		repo:          r,
		base:          view,
		view:          view.clone(),
		parentMapping: map[gocid.Cid][]gocid.Cid{},
	}, nil
}

// Repo returns the repository this transaction operates on.
func (tx *Transaction) Repo() *Repository {
	return tx.repo
}

// View returns the transaction's mutable working view.
func (tx *Transaction) View() *View {
	return tx.view
}

// BaseView returns the view as it was when the transaction started.
func (tx *Transaction) BaseView() *View {
	return tx.base
}

// SetRewritten registers an explicit rewrite record mapping old to new,
// overriding any record made by earlier commit writes. Bookmark following and
// descendant remapping both resolve old through this record.
func (tx *Transaction) SetRewritten(old, new gocid.Cid) {
	tx.parentMapping[old] = []gocid.Cid{new}
}

// Edit points a workspace's working copy at the given commit.
func (tx *Transaction) Edit(workspace string, c *Commit) {
	tx.view.WCCommits[workspace] = c.ID
}

// SetBookmark points a named bookmark at the given commit id.
func (tx *Transaction) SetBookmark(name string, id gocid.Cid) {
	tx.view.Bookmarks[name] = id
}

// CheckRewritable fails with ErrImmutable if the target or any of its
// descendants is immutable. The immutable set is every ancestor of a commit
// named by one of the given bookmarks. Runs before any mutation.
func (tx *Transaction) CheckRewritable(target gocid.Cid, immutableBookmarks []string) error {
	if len(immutableBookmarks) == 0 {
		return nil
	}
	graph, err := tx.loadGraph()
	if err != nil {
		return err
	}

	immutable := map[gocid.Cid]bool{}
	var queue []gocid.Cid
	for _, name := range immutableBookmarks {
		if id, ok := tx.view.Bookmarks[name]; ok {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if immutable[id] {
			continue
		}
		immutable[id] = true
		if c, ok := graph.commits[id]; ok {
			queue = append(queue, c.Parents...)
		}
	}

	affected := graph.descendants([]gocid.Cid{target})
	affected[target] = true
	for _, id := range sortedIDSet(affected) {
		if immutable[id] {
			return fmt.Errorf("commit %s: %w", store.ShortName(id), ErrImmutable)
		}
	}
	return nil
}

// Finish follows bookmarks through the rewrites made in this transaction and
// commits the view atomically. On any error nothing is persisted.
func (tx *Transaction) Finish(description string) error {
	if tx.finished {
		return fmt.Errorf("transaction already finished")
	}
	for name, target := range tx.view.Bookmarks {
		tx.view.Bookmarks[name] = tx.followRewrites(target)
	}
	if err := tx.repo.commitView(tx.view, description); err != nil {
		return fmt.Errorf("finish %q: %w", description, err)
	}
	tx.finished = true
	return nil
}

// followRewrites chases rewrite records from id to its latest successor.
// A 1-to-many rewrite follows the first (anchor) successor.
func (tx *Transaction) followRewrites(id gocid.Cid) gocid.Cid {
	seen := map[gocid.Cid]bool{}
	for {
		next, ok := tx.parentMapping[id]
		if !ok || len(next) == 0 || seen[id] {
			return id
		}
		seen[id] = true
		id = next[0]
	}
}

func sortedIDSet(set map[gocid.Cid]bool) []gocid.Cid {
	ids := make([]gocid.Cid, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

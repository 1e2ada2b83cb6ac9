package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/store"
)

// DefaultWorkspace is the workspace id used by a freshly initialized repo.
const DefaultWorkspace = "default"

// Repository is the top-level facade over the object store and the committed
// view. Commit and tree content is owned exclusively by the store
// (write-once); which commits are live is owned by the view.
type Repository struct {
	root        string
	store       *store.ObjectStore
	opHeadPath  string
	emptyTreeID gocid.Cid
}

func repoDir(root string) string {
	return filepath.Join(root, ".jj", "repo")
}

// Init creates a new repository at root: an empty tree, a root commit, and an
// initial view with the working copy on the root commit.
func Init(root string) (*Repository, error) {
	dir := repoDir(root)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("repository already exists at %s", root)
	}
	for _, d := range []string{dir, filepath.Join(dir, "store")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", d, err)
		}
	}
	r, err := open(root)
	if err != nil {
		return nil, err
	}

	rootCommit := &Commit{
		TreeID:    r.emptyTreeID,
		ChangeID:  uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
	if err := r.writeCommit(rootCommit); err != nil {
		return nil, err
	}

	view := newView()
	view.AddHead(rootCommit.ID)
	view.WCCommits[DefaultWorkspace] = rootCommit.ID
	if err := r.commitView(view, "initialize repo"); err != nil {
		return nil, err
	}
	return r, nil
}

// Open opens an existing repository at root.
func Open(root string) (*Repository, error) {
	if _, err := os.Stat(repoDir(root)); err != nil {
		return nil, fmt.Errorf("no repository at %s: %w", root, err)
	}
	return open(root)
}

func open(root string) (*Repository, error) {
	dir := repoDir(root)
	objects, err := store.NewObjectStore(filepath.Join(dir, "store", "objects"))
	if err != nil {
		return nil, err
	}
	r := &Repository{
		root:       root,
		store:      objects,
		opHeadPath: filepath.Join(dir, "op_head"),
	}
	// The empty tree is written eagerly; Put is a no-op when it exists.
	emptyID, err := r.WriteTree(nil)
	if err != nil {
		return nil, fmt.Errorf("write empty tree: %w", err)
	}
	r.emptyTreeID = emptyID
	return r, nil
}

// Root returns the workspace root directory.
func (r *Repository) Root() string {
	return r.root
}

// Store exposes the underlying object store.
func (r *Repository) Store() *store.ObjectStore {
	return r.store
}

// EmptyTreeID returns the id of the empty tree.
func (r *Repository) EmptyTreeID() gocid.Cid {
	return r.emptyTreeID
}

// writeCommit serializes and stores a commit, filling in its ID.
func (r *Repository) writeCommit(c *Commit) error {
	data, err := store.CanonicalJSON(c.envelope())
	if err != nil {
		return fmt.Errorf("serialize commit: %w", err)
	}
	id, err := r.store.Put(data)
	if err != nil {
		return fmt.Errorf("store commit: %w", err)
	}
	c.ID = id
	return nil
}

// GetCommit reads a commit by id.
func (r *Repository) GetCommit(id gocid.Cid) (*Commit, error) {
	data, err := r.store.Get(id)
	if err != nil {
		return nil, err
	}
	var env commitEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal commit: %w", err)
	}
	return commitFromEnvelope(id, &env)
}

// parentTreeID returns the tree implied by a commit's first parent, or the
// empty tree for the root commit.
func (r *Repository) parentTreeID(c *Commit) (gocid.Cid, error) {
	if len(c.Parents) == 0 {
		return r.emptyTreeID, nil
	}
	parent, err := r.GetCommit(c.Parents[0])
	if err != nil {
		return store.CidUndef, fmt.Errorf("read first parent: %w", err)
	}
	return parent.TreeID, nil
}

// IsEmpty reports whether the commit's tree equals its first parent's tree.
func (r *Repository) IsEmpty(c *Commit) (bool, error) {
	parentTree, err := r.parentTreeID(c)
	if err != nil {
		return false, err
	}
	return c.TreeID == parentTree, nil
}

// View loads the committed view.
func (r *Repository) View() (*View, error) {
	op, err := r.headOperation()
	if err != nil {
		return nil, err
	}
	viewID, err := store.NameToID(op.View)
	if err != nil {
		return nil, fmt.Errorf("decode view id: %w", err)
	}
	data, err := r.store.Get(viewID)
	if err != nil {
		return nil, err
	}
	var env viewEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal view: %w", err)
	}
	return viewFromEnvelope(&env)
}

// Resolve maps a user-supplied revision string to a commit id: "@" means the
// default workspace's working copy, then bookmarks, then a full object name,
// then a unique object name prefix.
func (r *Repository) Resolve(rev string) (gocid.Cid, error) {
	view, err := r.View()
	if err != nil {
		return store.CidUndef, err
	}
	if rev == "" || rev == "@" {
		if id, ok := view.WCCommits[DefaultWorkspace]; ok {
			return id, nil
		}
		return store.CidUndef, fmt.Errorf("no working copy in workspace %q", DefaultWorkspace)
	}
	if id, ok := view.Bookmarks[rev]; ok {
		return id, nil
	}
	if id, err := store.NameToID(rev); err == nil && r.store.Has(id) {
		return id, nil
	}

	// Fall back to a unique prefix over commits reachable from the heads.
	reachable, err := r.reachableCommits(view)
	if err != nil {
		return store.CidUndef, err
	}
	var match gocid.Cid
	for id := range reachable {
		if strings.HasPrefix(store.IDToName(id), rev) {
			if match != store.CidUndef {
				return store.CidUndef, fmt.Errorf("revision %q is ambiguous", rev)
			}
			match = id
		}
	}
	if match == store.CidUndef {
		return store.CidUndef, fmt.Errorf("revision %q not found", rev)
	}
	return match, nil
}

// reachableCommits walks parents from the view's heads.
func (r *Repository) reachableCommits(view *View) (map[gocid.Cid]*Commit, error) {
	commits := map[gocid.Cid]*Commit{}
	queue := view.HeadIDs()
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := commits[id]; ok {
			continue
		}
		c, err := r.GetCommit(id)
		if err != nil {
			return nil, fmt.Errorf("walk commit graph: %w", err)
		}
		commits[id] = c
		queue = append(queue, c.Parents...)
	}
	return commits, nil
}

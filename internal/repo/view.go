package repo

import (
	"fmt"
	"sort"

	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/store"
)

// View is the mutable part of the repository state: which commits are live
// heads, where each workspace's working copy points, and what the bookmarks
// name. A View is only ever mutated inside a transaction; the committed view
// is replaced atomically or not at all.
type View struct {
	Heads     map[gocid.Cid]bool
	WCCommits map[string]gocid.Cid // workspace id -> working-copy commit
	Bookmarks map[string]gocid.Cid
}

// viewEnvelope is the on-disk format for a view object.
type viewEnvelope struct {
	V         int               `json:"v"`
	Heads     []string          `json:"heads"`
	WCCommits map[string]string `json:"wc_commits"`
	Bookmarks map[string]string `json:"bookmarks,omitempty"`
}

func newView() *View {
	return &View{
		Heads:     map[gocid.Cid]bool{},
		WCCommits: map[string]gocid.Cid{},
		Bookmarks: map[string]gocid.Cid{},
	}
}

func (v *View) clone() *View {
	c := newView()
	for id := range v.Heads {
		c.Heads[id] = true
	}
	for ws, id := range v.WCCommits {
		c.WCCommits[ws] = id
	}
	for name, id := range v.Bookmarks {
		c.Bookmarks[name] = id
	}
	return c
}

// AddHead marks a commit as a live head.
func (v *View) AddHead(id gocid.Cid) {
	v.Heads[id] = true
}

// RemoveHead drops a commit from the live heads.
func (v *View) RemoveHead(id gocid.Cid) {
	delete(v.Heads, id)
}

// HeadIDs returns the live heads sorted by object name, so iteration order is
// reproducible.
func (v *View) HeadIDs() []gocid.Cid {
	ids := make([]gocid.Cid, 0, len(v.Heads))
	for id := range v.Heads {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// WorkspaceIDs returns the workspace identifiers in sorted order.
func (v *View) WorkspaceIDs() []string {
	names := make([]string, 0, len(v.WCCommits))
	for ws := range v.WCCommits {
		names = append(names, ws)
	}
	sort.Strings(names)
	return names
}

func sortIDs(ids []gocid.Cid) {
	sort.Slice(ids, func(i, j int) bool {
		return store.IDToName(ids[i]) < store.IDToName(ids[j])
	})
}

func (v *View) envelope() *viewEnvelope {
	env := &viewEnvelope{
		V:         1,
		Heads:     idsToNames(v.HeadIDs()),
		WCCommits: map[string]string{},
	}
	for ws, id := range v.WCCommits {
		env.WCCommits[ws] = store.IDToName(id)
	}
	if len(v.Bookmarks) > 0 {
		env.Bookmarks = map[string]string{}
		for name, id := range v.Bookmarks {
			env.Bookmarks[name] = store.IDToName(id)
		}
	}
	return env
}

func viewFromEnvelope(env *viewEnvelope) (*View, error) {
	v := newView()
	heads, err := namesToIDs(env.Heads)
	if err != nil {
		return nil, fmt.Errorf("decode heads: %w", err)
	}
	for _, id := range heads {
		v.Heads[id] = true
	}
	for ws, name := range env.WCCommits {
		id, err := store.NameToID(name)
		if err != nil {
			return nil, fmt.Errorf("decode wc commit for %s: %w", ws, err)
		}
		v.WCCommits[ws] = id
	}
	for bm, name := range env.Bookmarks {
		id, err := store.NameToID(name)
		if err != nil {
			return nil, fmt.Errorf("decode bookmark %s: %w", bm, err)
		}
		v.Bookmarks[bm] = id
	}
	return v, nil
}

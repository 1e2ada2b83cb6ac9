package repo

import (
	"fmt"
	"time"

	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/store"
)

// Commit is an immutable commit loaded from the object store. The ID is the
// CID of the commit's canonical serialization, so any change to a field
// produces a different commit.
type Commit struct {
	ID           gocid.Cid
	Parents      []gocid.Cid // empty only for the root commit
	TreeID       gocid.Cid
	ChangeID     string // stable across rewrites of the same logical change
	Description  string
	Predecessors []gocid.Cid // commits this one was rewritten from
	Timestamp    time.Time
}

// commitEnvelope is the on-disk format for a commit object.
type commitEnvelope struct {
	V            int      `json:"v"`
	Parents      []string `json:"parents,omitempty"`
	Tree         string   `json:"tree"`
	ChangeID     string   `json:"change_id"`
	Description  string   `json:"description,omitempty"`
	Predecessors []string `json:"predecessors,omitempty"`
	Timestamp    string   `json:"timestamp"`
}

func idsToNames(ids []gocid.Cid) []string {
	if len(ids) == 0 {
		return nil
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = store.IDToName(id)
	}
	return names
}

func namesToIDs(names []string) ([]gocid.Cid, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]gocid.Cid, len(names))
	for i, name := range names {
		id, err := store.NameToID(name)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (c *Commit) envelope() *commitEnvelope {
	return &commitEnvelope{
		V:            1,
		Parents:      idsToNames(c.Parents),
		Tree:         store.IDToName(c.TreeID),
		ChangeID:     c.ChangeID,
		Description:  c.Description,
		Predecessors: idsToNames(c.Predecessors),
		Timestamp:    c.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func commitFromEnvelope(id gocid.Cid, env *commitEnvelope) (*Commit, error) {
	parents, err := namesToIDs(env.Parents)
	if err != nil {
		return nil, fmt.Errorf("decode parents: %w", err)
	}
	tree, err := store.NameToID(env.Tree)
	if err != nil {
		return nil, fmt.Errorf("decode tree id: %w", err)
	}
	preds, err := namesToIDs(env.Predecessors)
	if err != nil {
		return nil, fmt.Errorf("decode predecessors: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("decode timestamp: %w", err)
	}
	return &Commit{
		ID:           id,
		Parents:      parents,
		TreeID:       tree,
		ChangeID:     env.ChangeID,
		Description:  env.Description,
		Predecessors: preds,
		Timestamp:    ts,
	}, nil
}

// HasParent reports whether id is one of the commit's parents.
func (c *Commit) HasParent(id gocid.Cid) bool {
	for _, p := range c.Parents {
		if p == id {
			return true
		}
	}
	return false
}

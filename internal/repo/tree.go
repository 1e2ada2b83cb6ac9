package repo

import (
	"encoding/json"
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/store"
)

// TreeEntry is the value a tree records at a path: either a blob, or a
// conflict left behind by a three-way merge where both sides disagreed.
type TreeEntry struct {
	Blob     string         `json:"blob,omitempty"`
	Conflict *ConflictEntry `json:"conflict,omitempty"`
}

// ConflictEntry records the blob ids of each side of an unresolved merge.
// An empty string means the path was absent on that side.
type ConflictEntry struct {
	Base  string `json:"base,omitempty"`
	Left  string `json:"left,omitempty"`
	Right string `json:"right,omitempty"`
}

// Tree is an immutable snapshot of a file hierarchy, identified by the CID of
// its canonical serialization. Paths are flat, slash-separated.
type Tree struct {
	ID      gocid.Cid
	Entries map[string]TreeEntry
}

// treeEnvelope is the on-disk format for a tree object.
type treeEnvelope struct {
	V       int                  `json:"v"`
	Entries map[string]TreeEntry `json:"entries"`
}

func entryEqual(a, b TreeEntry) bool {
	if a.Blob != b.Blob {
		return false
	}
	if (a.Conflict == nil) != (b.Conflict == nil) {
		return false
	}
	if a.Conflict != nil && *a.Conflict != *b.Conflict {
		return false
	}
	return true
}

func (e TreeEntry) isAbsent() bool {
	return e.Blob == "" && e.Conflict == nil
}

// HasConflicts reports whether any path in the tree records a conflict.
func (t *Tree) HasConflicts() bool {
	for _, e := range t.Entries {
		if e.Conflict != nil {
			return true
		}
	}
	return false
}

// WriteTree stores a tree with the given entries and returns its id.
// Absent entries are dropped so logically equal trees hash identically.
func (r *Repository) WriteTree(entries map[string]TreeEntry) (gocid.Cid, error) {
	env := &treeEnvelope{V: 1, Entries: map[string]TreeEntry{}}
	for path, e := range entries {
		if e.isAbsent() {
			continue
		}
		env.Entries[path] = e
	}
	data, err := store.CanonicalJSON(env)
	if err != nil {
		return store.CidUndef, fmt.Errorf("serialize tree: %w", err)
	}
	c, err := r.store.Put(data)
	if err != nil {
		return store.CidUndef, fmt.Errorf("store tree: %w", err)
	}
	return c, nil
}

// GetTree reads a tree by id.
func (r *Repository) GetTree(id gocid.Cid) (*Tree, error) {
	data, err := r.store.Get(id)
	if err != nil {
		return nil, err
	}
	var env treeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal tree: %w", err)
	}
	if env.Entries == nil {
		env.Entries = map[string]TreeEntry{}
	}
	return &Tree{ID: id, Entries: env.Entries}, nil
}

// WriteBlob stores raw file content and returns its blob name.
func (r *Repository) WriteBlob(content []byte) (string, error) {
	c, err := r.store.Put(content)
	if err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	return store.IDToName(c), nil
}

// MergeTrees computes a three-way merge of sideA and sideB against base.
// Per path: if exactly one side differs from base, that side wins; if both
// sides changed to the same value, that value wins; if both changed and
// disagree, a conflict is recorded at the path. Deterministic: the same
// inputs always yield the same output id.
func (r *Repository) MergeTrees(sideA, sideB, base gocid.Cid) (gocid.Cid, error) {
	ta, err := r.GetTree(sideA)
	if err != nil {
		return store.CidUndef, fmt.Errorf("merge side a: %w", err)
	}
	tb, err := r.GetTree(sideB)
	if err != nil {
		return store.CidUndef, fmt.Errorf("merge side b: %w", err)
	}
	tbase, err := r.GetTree(base)
	if err != nil {
		return store.CidUndef, fmt.Errorf("merge base: %w", err)
	}
	merged := mergeTreeEntries(ta.Entries, tb.Entries, tbase.Entries)
	return r.WriteTree(merged)
}

func mergeTreeEntries(a, b, base map[string]TreeEntry) map[string]TreeEntry {
	paths := map[string]bool{}
	for p := range a {
		paths[p] = true
	}
	for p := range b {
		paths[p] = true
	}
	for p := range base {
		paths[p] = true
	}

	out := map[string]TreeEntry{}
	for p := range paths {
		av, bv, basev := a[p], b[p], base[p]
		switch {
		case entryEqual(av, bv):
			out[p] = av
		case entryEqual(bv, basev):
			out[p] = av // only side a changed
		case entryEqual(av, basev):
			out[p] = bv // only side b changed
		default:
			out[p] = TreeEntry{Conflict: &ConflictEntry{
				Base:  basev.Blob,
				Left:  av.Blob,
				Right: bv.Blob,
			}}
		}
	}
	return out
}

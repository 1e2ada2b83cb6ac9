package repo

import (
	"testing"

	gocid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/AngelEzquerra/jj/internal/store"
)

func initTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := Init(t.TempDir())
	require.NoError(t, err)
	return r
}

func rootCommitID(t *testing.T, r *Repository) gocid.Cid {
	t.Helper()
	view, err := r.View()
	require.NoError(t, err)
	id, ok := view.WCCommits[DefaultWorkspace]
	require.True(t, ok)
	return id
}

func writeTestTree(t *testing.T, r *Repository, files map[string]string) gocid.Cid {
	t.Helper()
	entries := map[string]TreeEntry{}
	for path, content := range files {
		blob, err := r.WriteBlob([]byte(content))
		require.NoError(t, err)
		entries[path] = TreeEntry{Blob: blob}
	}
	id, err := r.WriteTree(entries)
	require.NoError(t, err)
	return id
}

// commitFiles creates and commits a new commit with the given files in its
// own transaction.
func commitFiles(t *testing.T, r *Repository, parents []gocid.Cid, description string, files map[string]string) *Commit {
	t.Helper()
	tx, err := r.StartTransaction()
	require.NoError(t, err)
	c, err := tx.NewCommit(parents, writeTestTree(t, r, files), description).Write()
	require.NoError(t, err)
	require.NoError(t, tx.Finish("test setup"))
	return c
}

func treeFiles(t *testing.T, r *Repository, treeID gocid.Cid) map[string]string {
	t.Helper()
	tree, err := r.GetTree(treeID)
	require.NoError(t, err)
	files := map[string]string{}
	for path, entry := range tree.Entries {
		require.Nil(t, entry.Conflict, "unexpected conflict at %s", path)
		blobID, err := store.NameToID(entry.Blob)
		require.NoError(t, err)
		data, err := r.Store().Get(blobID)
		require.NoError(t, err)
		files[path] = string(data)
	}
	return files
}

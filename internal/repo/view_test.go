package repo

import (
	"testing"

	gocid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelEzquerra/jj/internal/store"
)

func TestInit_CreatesRootCommitAndView(t *testing.T) {
	r := initTestRepo(t)

	view, err := r.View()
	require.NoError(t, err)
	heads := view.HeadIDs()
	require.Len(t, heads, 1)

	root, err := r.GetCommit(heads[0])
	require.NoError(t, err)
	assert.Empty(t, root.Parents)
	assert.Equal(t, r.EmptyTreeID(), root.TreeID)
	assert.NotEmpty(t, root.ChangeID)
	assert.Equal(t, root.ID, view.WCCommits[DefaultWorkspace])
}

func TestInit_FailsWhenRepositoryExists(t *testing.T) {
	r := initTestRepo(t)
	_, err := Init(r.Root())
	require.ErrorContains(t, err, "already exists")
}

func TestTransaction_AbandonedLeavesViewUntouched(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	before, err := r.View()
	require.NoError(t, err)

	tx, err := r.StartTransaction()
	require.NoError(t, err)
	treeID := writeTestTree(t, r, map[string]string{"f": "1"})
	_, err = tx.NewCommit([]gocid.Cid{root}, treeID, "abandoned").Write()
	require.NoError(t, err)
	tx.SetBookmark("doomed", root)
	// No Finish: the op_head pointer never moves.

	after, err := r.View()
	require.NoError(t, err)
	assert.Equal(t, before.HeadIDs(), after.HeadIDs())
	assert.NotContains(t, after.Bookmarks, "doomed")
}

func TestTransaction_FinishPersistsView(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)

	tx, err := r.StartTransaction()
	require.NoError(t, err)
	treeID := writeTestTree(t, r, map[string]string{"f": "1"})
	c, err := tx.NewCommit([]gocid.Cid{root}, treeID, "kept").Write()
	require.NoError(t, err)
	require.NoError(t, tx.Finish("add commit"))

	view, err := r.View()
	require.NoError(t, err)
	assert.Equal(t, []gocid.Cid{c.ID}, view.HeadIDs())
}

func TestTransaction_FinishTwiceFails(t *testing.T) {
	r := initTestRepo(t)
	tx, err := r.StartTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.Finish("first"))
	require.ErrorContains(t, tx.Finish("second"), "already finished")
}

func TestWriteBookkeeping_ParentsAndPredecessorsLeaveHeadSet(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"f": "1"})

	tx, err := r.StartTransaction()
	require.NoError(t, err)

	// A sibling head next to a.
	other, err := tx.NewCommit([]gocid.Cid{root}, r.EmptyTreeID(), "other").Write()
	require.NoError(t, err)
	assert.ElementsMatch(t, []gocid.Cid{a.ID, other.ID}, tx.View().HeadIDs())

	// Rewriting a retires it from the head set in favor of its replacement.
	newA, err := tx.RewriteCommit(a).SetDescription("a, edited").Write()
	require.NoError(t, err)
	assert.ElementsMatch(t, []gocid.Cid{newA.ID, other.ID}, tx.View().HeadIDs())

	// A child of both retires both.
	merge, err := tx.NewCommit([]gocid.Cid{newA.ID, other.ID}, newA.TreeID, "merge").Write()
	require.NoError(t, err)
	assert.Equal(t, []gocid.Cid{merge.ID}, tx.View().HeadIDs())
}

func TestOperations_ChainIsNewestFirst(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"f": "1"})

	ops, err := r.Operations(10)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "test setup", ops[0].Description)
	assert.Equal(t, "initialize repo", ops[1].Description)
	assert.Empty(t, ops[1].Parent)

	// The limit caps the walk.
	ops, err = r.Operations(1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "test setup", ops[0].Description)
}

func TestResolve(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"f": "1"})
	setBookmark(t, r, "feature", a.ID)

	t.Run("at sign means working copy", func(t *testing.T) {
		id, err := r.Resolve("@")
		require.NoError(t, err)
		assert.Equal(t, root, id)
	})

	t.Run("bookmark", func(t *testing.T) {
		id, err := r.Resolve("feature")
		require.NoError(t, err)
		assert.Equal(t, a.ID, id)
	})

	t.Run("full object name", func(t *testing.T) {
		id, err := r.Resolve(store.IDToName(a.ID))
		require.NoError(t, err)
		assert.Equal(t, a.ID, id)
	})

	t.Run("unique prefix", func(t *testing.T) {
		id, err := r.Resolve(store.IDToName(a.ID)[:16])
		require.NoError(t, err)
		assert.Equal(t, a.ID, id)
	})

	t.Run("unknown revision", func(t *testing.T) {
		_, err := r.Resolve("zzzznotarevision")
		require.ErrorContains(t, err, "not found")
	})
}

func TestCheckRewritable_MutableWhenNoImmutableBookmarks(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"f": "1"})

	tx, err := r.StartTransaction()
	require.NoError(t, err)
	assert.NoError(t, tx.CheckRewritable(a.ID, nil))
}

func TestCheckRewritable_DescendantOfImmutableIsStillMutable(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"f": "1"})
	b := commitFiles(t, r, []gocid.Cid{a.ID}, "b", map[string]string{"f": "1", "g": "2"})
	setBookmark(t, r, "main", a.ID)

	tx, err := r.StartTransaction()
	require.NoError(t, err)
	// b comes after the immutable bookmark, so editing it is fine.
	assert.NoError(t, tx.CheckRewritable(b.ID, []string{"main"}))
	// a is the bookmark target itself.
	assert.ErrorIs(t, tx.CheckRewritable(a.ID, []string{"main"}), ErrImmutable)
	// The root is an ancestor of the bookmark target.
	assert.ErrorIs(t, tx.CheckRewritable(root, []string{"main"}), ErrImmutable)
}

package repo

import (
	"testing"

	gocid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelEzquerra/jj/internal/config"
)

// countingEditor accepts every template unchanged and counts invocations.
type countingEditor struct {
	calls int
}

func (e *countingEditor) Edit(template string) (string, error) {
	e.calls++
	return template, nil
}

func splitOptions(r *Repository, target gocid.Cid) SplitOptions {
	return SplitOptions{
		Target:   target,
		Selector: &FilesetSelector{Repo: r},
		Editor:   PassthroughEditor{},
	}
}

func checkout(t *testing.T, r *Repository, c *Commit) {
	t.Helper()
	tx, err := r.StartTransaction()
	require.NoError(t, err)
	tx.Edit(DefaultWorkspace, c)
	require.NoError(t, tx.Finish("checkout"))
}

func setBookmark(t *testing.T, r *Repository, name string, id gocid.Cid) {
	t.Helper()
	tx, err := r.StartTransaction()
	require.NoError(t, err)
	tx.SetBookmark(name, id)
	require.NoError(t, tx.Finish("set bookmark"))
}

func TestSplit_SelectEverything(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "my change", map[string]string{"f": "1"})

	opts := splitOptions(r, a.ID) // nil matcher selects all changes
	result, err := r.Split(config.Config{}, opts)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "second commit will be empty")

	// The first commit carries all of the original content.
	assert.Equal(t, a.TreeID, result.First.TreeID)
	assert.Equal(t, a.Parents, result.First.Parents)
	assert.Equal(t, "my change", result.First.Description)

	// The second commit sits on top and is empty.
	require.Equal(t, []gocid.Cid{result.First.ID}, result.Second.Parents)
	empty, err := r.IsEmpty(result.Second)
	require.NoError(t, err)
	assert.True(t, empty)

	assert.Equal(t, 0, result.NumRebased)
}

func TestSplit_SelectNothing(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "my change", map[string]string{"f": "1"})

	opts := splitOptions(r, a.ID)
	opts.Matcher = MatchPaths(nil) // matches no path
	result, err := r.Split(config.Config{}, opts)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "first commit will be empty")

	empty, err := r.IsEmpty(result.First)
	require.NoError(t, err)
	assert.True(t, empty)

	// The second commit has all the original content.
	assert.Equal(t, a.TreeID, result.Second.TreeID)
	empty, err = r.IsEmpty(result.Second)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestSplit_PathFilter(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"x": "1", "y": "2"})
	checkout(t, r, a)
	setBookmark(t, r, "feature", a.ID)

	cfg := config.Config{}
	cfg.Split.LegacyBookmarkBehavior = true

	opts := splitOptions(r, a.ID)
	opts.Matcher = MatchPaths([]string{"x"})
	result, err := r.Split(cfg, opts)
	require.NoError(t, err)
	require.Empty(t, result.Warnings)

	// First commit holds only the selected file; the second is its child and
	// holds the full change.
	assert.Equal(t, map[string]string{"x": "1"}, treeFiles(t, r, result.First.TreeID))
	assert.Equal(t, map[string]string{"x": "1", "y": "2"}, treeFiles(t, r, result.Second.TreeID))
	assert.Equal(t, []gocid.Cid{result.First.ID}, result.Second.Parents)
	assert.Equal(t, 0, result.NumRebased)

	view, err := r.View()
	require.NoError(t, err)
	// The working copy moved to the second commit, and with legacy behavior
	// the bookmark followed it there too.
	assert.Equal(t, result.Second.ID, view.WCCommits[DefaultWorkspace])
	assert.Equal(t, result.Second.ID, view.Bookmarks["feature"])
}

func TestSplit_RoundTripContent(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"x": "1", "y": "2", "z": "3"})

	opts := splitOptions(r, a.ID)
	opts.Matcher = MatchPaths([]string{"x", "z"})
	result, err := r.Split(config.Config{}, opts)
	require.NoError(t, err)

	// Sequential mode: the second commit's tree is exactly the original end
	// tree, so concatenating first's changes with second's reconstructs the
	// original content with nothing duplicated or dropped.
	assert.Equal(t, map[string]string{"x": "1", "z": "3"}, treeFiles(t, r, result.First.TreeID))
	assert.Equal(t, a.TreeID, result.Second.TreeID)
}

func TestSplit_FreshChangeIdentity(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"f": "1"})

	result, err := r.Split(config.Config{}, splitOptions(r, a.ID))
	require.NoError(t, err)

	// The first commit keeps the original change identity; the second gets a
	// fresh one so no two live commits share an identity.
	assert.Equal(t, a.ChangeID, result.First.ChangeID)
	assert.NotEqual(t, a.ChangeID, result.Second.ChangeID)
	assert.NotEqual(t, result.First.ChangeID, result.Second.ChangeID)
}

func TestSplit_EmptyCommitFails(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	rootCommit, err := r.GetCommit(root)
	require.NoError(t, err)

	tx, err := r.StartTransaction()
	require.NoError(t, err)
	emptyCommit, err := tx.NewCommit([]gocid.Cid{root}, rootCommit.TreeID, "empty").Write()
	require.NoError(t, err)
	require.NoError(t, tx.Finish("new empty commit"))

	before, err := r.Operations(100)
	require.NoError(t, err)

	_, err = r.Split(config.Config{}, splitOptions(r, emptyCommit.ID))
	require.ErrorIs(t, err, ErrEmptyCommit)

	// Nothing was mutated.
	after, err := r.Operations(100)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSplit_ImmutableTargetFails(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"f": "1"})
	b := commitFiles(t, r, []gocid.Cid{a.ID}, "b", map[string]string{"f": "1", "g": "2"})
	setBookmark(t, r, "main", b.ID)

	cfg := config.Config{}
	cfg.Revset.ImmutableBookmarks = []string{"main"}

	before, err := r.Operations(100)
	require.NoError(t, err)

	// a is an ancestor of the immutable bookmark, so it must not be split.
	_, err = r.Split(cfg, splitOptions(r, a.ID))
	require.ErrorIs(t, err, ErrImmutable)

	after, err := r.Operations(100)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSplit_SecondDescriptionOnlyWhenOriginalHadOne(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)

	t.Run("no description, no prompt for second", func(t *testing.T) {
		a := commitFiles(t, r, []gocid.Cid{root}, "", map[string]string{"f": "1"})
		editor := &countingEditor{}
		opts := splitOptions(r, a.ID)
		opts.Editor = editor

		result, err := r.Split(config.Config{}, opts)
		require.NoError(t, err)
		assert.Equal(t, 1, editor.calls)
		assert.Empty(t, result.Second.Description)
	})

	t.Run("description present, both parts prompted", func(t *testing.T) {
		a := commitFiles(t, r, []gocid.Cid{root}, "described", map[string]string{"g": "1"})
		editor := &countingEditor{}
		opts := splitOptions(r, a.ID)
		opts.Editor = editor

		result, err := r.Split(config.Config{}, opts)
		require.NoError(t, err)
		assert.Equal(t, 2, editor.calls)
		assert.Equal(t, "described", result.Second.Description)
	})
}

func TestSplit_DefaultDescriptionSeedsFirstPart(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "", map[string]string{"f": "1"})

	cfg := config.Config{}
	cfg.UI.DefaultDescription = "TODO: describe this change"

	result, err := r.Split(cfg, splitOptions(r, a.ID))
	require.NoError(t, err)
	assert.Equal(t, "TODO: describe this change", result.First.Description)
}

func TestSplit_BookmarkFollowsFirstWithoutLegacy(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"f": "1"})
	setBookmark(t, r, "feature", a.ID)

	result, err := r.Split(config.Config{}, splitOptions(r, a.ID))
	require.NoError(t, err)

	view, err := r.View()
	require.NoError(t, err)
	assert.Equal(t, result.First.ID, view.Bookmarks["feature"])
}

func TestSplit_Parallel_RebasesDescendantOntoBothParts(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"x": "1", "y": "2"})
	b := commitFiles(t, r, []gocid.Cid{a.ID}, "b", map[string]string{"x": "1", "y": "2", "z": "3"})

	opts := splitOptions(r, a.ID)
	opts.Matcher = MatchPaths([]string{"x"})
	opts.Parallel = true
	result, err := r.Split(config.Config{}, opts)
	require.NoError(t, err)

	// Both parts are siblings on the original parent.
	assert.Equal(t, a.Parents, result.First.Parents)
	assert.Equal(t, a.Parents, result.Second.Parents)
	assert.Equal(t, map[string]string{"x": "1"}, treeFiles(t, r, result.First.TreeID))
	assert.Equal(t, map[string]string{"y": "2"}, treeFiles(t, r, result.Second.TreeID))
	assert.Equal(t, 1, result.NumRebased)

	view, err := r.View()
	require.NoError(t, err)
	heads := view.HeadIDs()
	require.Len(t, heads, 1)

	rebased, err := r.GetCommit(heads[0])
	require.NoError(t, err)
	assert.Equal(t, []gocid.Cid{result.First.ID, result.Second.ID}, rebased.Parents)
	assert.Equal(t, b.ChangeID, rebased.ChangeID)
	// The rebased tree still holds the full content.
	assert.Equal(t, map[string]string{"x": "1", "y": "2", "z": "3"}, treeFiles(t, r, rebased.TreeID))
}

func TestSplit_ParallelLegacy_SameReparenting(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"x": "1", "y": "2"})
	commitFiles(t, r, []gocid.Cid{a.ID}, "b", map[string]string{"x": "1", "y": "2", "z": "3"})
	setBookmark(t, r, "feature", a.ID)

	cfg := config.Config{}
	cfg.Split.LegacyBookmarkBehavior = true

	opts := splitOptions(r, a.ID)
	opts.Matcher = MatchPaths([]string{"x"})
	opts.Parallel = true
	result, err := r.Split(cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NumRebased)

	view, err := r.View()
	require.NoError(t, err)
	heads := view.HeadIDs()
	require.Len(t, heads, 1)
	rebased, err := r.GetCommit(heads[0])
	require.NoError(t, err)

	// The re-parenting matches the non-legacy parallel case; only the
	// bookmark destination differs.
	assert.Equal(t, []gocid.Cid{result.First.ID, result.Second.ID}, rebased.Parents)
	assert.Equal(t, result.Second.ID, view.Bookmarks["feature"])
}

func TestSplit_WorkingCopyUntouchedForOtherWorkspaces(t *testing.T) {
	r := initTestRepo(t)
	root := rootCommitID(t, r)
	a := commitFiles(t, r, []gocid.Cid{root}, "a", map[string]string{"f": "1"})

	tx, err := r.StartTransaction()
	require.NoError(t, err)
	tx.View().WCCommits["second-workspace"] = root
	require.NoError(t, tx.Finish("add workspace"))
	checkout(t, r, a)

	result, err := r.Split(config.Config{}, splitOptions(r, a.ID))
	require.NoError(t, err)

	view, err := r.View()
	require.NoError(t, err)
	assert.Equal(t, result.Second.ID, view.WCCommits[DefaultWorkspace])
	assert.Equal(t, root, view.WCCommits["second-workspace"])
}

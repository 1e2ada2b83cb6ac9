package repo

import (
	"fmt"
	"strings"

	gocid "github.com/ipfs/go-cid"
)

// PathMatcher filters tree paths. A nil matcher accepts every path.
type PathMatcher func(path string) bool

// MatchPaths builds a matcher accepting the given paths exactly, or anything
// under a path when treated as a directory prefix.
func MatchPaths(paths []string) PathMatcher {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, strings.TrimSuffix(p, "/"))
	}
	return func(path string) bool {
		for _, p := range cleaned {
			if path == p || strings.HasPrefix(path, p+"/") {
				return true
			}
		}
		return false
	}
}

// DiffSelector chooses a tree "between" base and end: each changed path is
// either kept at its base value or advanced to its end value. Implementations
// may block on user interaction.
type DiffSelector interface {
	Select(base, end *Tree, match PathMatcher, instructions string) (gocid.Cid, error)
}

// FilesetSelector selects changes non-interactively: every path accepted by
// the matcher takes its end-tree value, everything else stays at base.
type FilesetSelector struct {
	Repo *Repository
}

// Select implements DiffSelector.
func (s *FilesetSelector) Select(base, end *Tree, match PathMatcher, _ string) (gocid.Cid, error) {
	paths := map[string]bool{}
	for p := range base.Entries {
		paths[p] = true
	}
	for p := range end.Entries {
		paths[p] = true
	}

	selected := map[string]TreeEntry{}
	for p := range paths {
		if match == nil || match(p) {
			selected[p] = end.Entries[p]
		} else {
			selected[p] = base.Entries[p]
		}
	}
	id, err := s.Repo.WriteTree(selected)
	if err != nil {
		return id, fmt.Errorf("write selected tree: %w", err)
	}
	return id, nil
}

// DescriptionEditor produces the final text for a commit description.
// Implementations may block on an external editing session.
type DescriptionEditor interface {
	Edit(template string) (string, error)
}

// StaticEditor returns fixed text regardless of the template. Used for
// message flags and tests.
type StaticEditor struct {
	Text string
}

// Edit implements DescriptionEditor.
func (e *StaticEditor) Edit(string) (string, error) {
	return e.Text, nil
}

// PassthroughEditor accepts the template unchanged.
type PassthroughEditor struct{}

// Edit implements DescriptionEditor.
func (PassthroughEditor) Edit(template string) (string, error) {
	return template, nil
}

// descriptionTemplate renders the editing template for a commit: the intro as
// instruction lines, then the current description.
func descriptionTemplate(intro string, c *Commit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "JJ: %s\n", intro)
	b.WriteString(c.Description)
	return b.String()
}

// editDescription runs the editor and strips instruction lines from the
// result.
func editDescription(editor DescriptionEditor, template string) (string, error) {
	text, err := editor.Edit(template)
	if err != nil {
		return "", fmt.Errorf("edit description: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "JJ:") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

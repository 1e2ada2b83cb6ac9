// Package colocate converts a repository between an embedded git store layout
// and a directly co-located layout readable by git itself. It moves the store
// directory and maintains the git_target pointer file; it never rewrites the
// commit graph.
package colocate

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/AngelEzquerra/jj/internal/store"
)

// gitTargetEmbedded is the git_target content for an embedded store;
// gitTargetColocated points at the workspace-root .git directory.
const (
	gitTargetEmbedded  = "git"
	gitTargetColocated = "../../../.git"
)

// runGit is a seam so tests can stub out the git binary.
var runGit = func(gitDir string, args ...string) error {
	cmd := exec.Command("git", append([]string{"-C", gitDir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %v: %s", strings.Join(args, " "), err, bytes.TrimSpace(out))
	}
	return nil
}

type layout struct {
	dotJJ     string
	repoDir   string
	gitStore  string
	gitTarget string
	dotGit    string
	gitignore string
}

func layoutFor(root string) layout {
	dotJJ := filepath.Join(root, ".jj")
	repoDir := filepath.Join(dotJJ, "repo")
	return layout{
		dotJJ:     dotJJ,
		repoDir:   repoDir,
		gitStore:  filepath.Join(repoDir, "store", "git"),
		gitTarget: filepath.Join(repoDir, "store", "git_target"),
		dotGit:    filepath.Join(root, ".git"),
		gitignore: filepath.Join(dotJJ, ".gitignore"),
	}
}

// IsColocated reports whether the workspace at root shares its git store with
// a .git directory at the workspace root.
func IsColocated(root string) bool {
	l := layoutFor(root)
	data, err := os.ReadFile(l.gitTarget)
	if err != nil {
		return false
	}
	if strings.TrimSpace(string(data)) == gitTargetEmbedded {
		return false
	}
	_, err = os.Stat(l.dotGit)
	return err == nil
}

// Enable converts the workspace into a co-located repository: the embedded
// git store moves to <root>/.git and the git_target pointer follows it.
func Enable(root string) error {
	l := layoutFor(root)

	if _, err := os.Stat(l.dotGit); err == nil {
		return fmt.Errorf("a .git directory already exists in the workspace root, cannot co-locate")
	}
	if info, err := os.Stat(l.repoDir); err == nil && !info.IsDir() {
		return fmt.Errorf("cannot co-locate a secondary workspace")
	}
	if _, err := os.Stat(l.gitStore); err != nil {
		return fmt.Errorf("git store not found, this repository might not be using the git back-end")
	}

	// Make the root git repo ignore the .jj directory entirely.
	if err := os.WriteFile(l.gitignore, []byte("/*\n"), 0644); err != nil {
		return fmt.Errorf("create .jj/.gitignore: %w", err)
	}

	// The pointer file goes first so a failure in the move is easier to
	// revert.
	if err := store.SafeWrite(l.gitTarget, []byte(gitTargetColocated), 0644); err != nil {
		return fmt.Errorf("update git_target: %w", err)
	}

	if err := moveDirectory(l.gitStore, l.dotGit); err != nil {
		moveErr := fmt.Errorf("move git store to %s: %w", l.dotGit, err)
		if cleanupErr := store.SafeWrite(l.gitTarget, []byte(gitTargetEmbedded), 0644); cleanupErr != nil {
			return fmt.Errorf("%w (also failed to restore git_target: %v)", moveErr, cleanupErr)
		}
		return moveErr
	}

	if err := runGit(l.dotGit, "config", "--unset", "core.bare"); err != nil {
		return fmt.Errorf("unset core.bare: %w", err)
	}
	return nil
}

// Disable converts the workspace back into a regular repository with an
// embedded git store.
func Disable(root string) error {
	l := layoutFor(root)

	if _, err := os.Stat(l.dotGit); err != nil {
		return fmt.Errorf("no .git directory found in workspace root")
	}
	if _, err := os.Stat(l.gitStore); err == nil {
		return fmt.Errorf("git store already exists at .jj/repo/store/git, cannot disable co-location")
	}

	if err := runGit(l.dotGit, "config", "core.bare", "true"); err != nil {
		return fmt.Errorf("set core.bare: %w", err)
	}

	if err := moveDirectory(l.dotGit, l.gitStore); err != nil {
		return fmt.Errorf("move git repository to %s: %w", l.gitStore, err)
	}

	if err := store.SafeWrite(l.gitTarget, []byte(gitTargetEmbedded), 0644); err != nil {
		return fmt.Errorf("update git_target: %w", err)
	}

	if _, err := os.Stat(l.gitignore); err == nil {
		if err := os.Remove(l.gitignore); err != nil {
			return fmt.Errorf("remove .jj/.gitignore: %w", err)
		}
	}
	return nil
}

// moveDirectory renames from to to, falling back to a recursive copy plus
// delete when the rename crosses a filesystem boundary.
func moveDirectory(from, to string) error {
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	if err := copyDirRecursive(from, to); err != nil {
		return err
	}
	return os.RemoveAll(from)
}

func copyDirRecursive(from, to string) error {
	if err := os.MkdirAll(to, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(from)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		src := filepath.Join(from, entry.Name())
		dst := filepath.Join(to, entry.Name())
		if entry.IsDir() {
			if err := copyDirRecursive(src, dst); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
			return err
		}
	}
	return nil
}

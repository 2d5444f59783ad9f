package git

import (
	"errors"
	"fmt"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/r2midi/presetctl/internal/vcs"
)

// RepoInfo describes the checked-out state of a working tree.
type RepoInfo struct {
	// Head is the commit hash HEAD points at, empty before the first commit
	Head string `json:"head" yaml:"head"`

	// Branch is the short branch name, empty on a detached HEAD
	Branch string `json:"branch" yaml:"branch"`

	// Dirty reports uncommitted changes in the working tree
	Dirty bool `json:"dirty" yaml:"dirty"`

	// Changed lists the paths with changes
	Changed []string `json:"changed,omitempty" yaml:"changed,omitempty"`
}

// IsRepository reports whether dir is itself the root of a git working tree.
// A .git file pointing elsewhere, as submodules use, counts.
func IsRepository(dir string) bool {
	_, err := gogit.PlainOpen(dir)
	return err == nil
}

// Inspect reads HEAD and the worktree status of the repository at dir.
func Inspect(dir string) (RepoInfo, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return RepoInfo{}, fmt.Errorf("%w: %s", vcs.ErrNotInVCS, dir)
		}
		return RepoInfo{}, fmt.Errorf("failed to open git repo at %s: %w", dir, err)
	}

	var info RepoInfo
	ref, err := repo.Head()
	switch {
	case err == nil:
		info.Head = ref.Hash().String()
		if ref.Name().IsBranch() {
			info.Branch = ref.Name().Short()
		}
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Unborn branch
	default:
		return RepoInfo{}, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return RepoInfo{}, fmt.Errorf("failed to open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return RepoInfo{}, fmt.Errorf("failed to read worktree status: %w", err)
	}
	for path, st := range status {
		if st.Worktree == gogit.Unmodified && st.Staging == gogit.Unmodified {
			continue
		}
		info.Changed = append(info.Changed, path)
	}
	sort.Strings(info.Changed)
	info.Dirty = len(info.Changed) > 0
	return info, nil
}

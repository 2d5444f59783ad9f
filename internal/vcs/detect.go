package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Detection describes the git repository that contains a path.
type Detection struct {
	// RepoRoot is the working tree root.
	RepoRoot string

	// GitDir is the git metadata directory. For a linked checkout it is
	// the directory named by the .git file.
	GitDir string

	// Linked is set when .git is a file: a submodule or a worktree.
	Linked bool

	// Submodule is set when GitDir lives under a parent's .git/modules.
	Submodule bool

	// SuperRoot is the parent repository root of a submodule or the main
	// repository root of a worktree. It equals RepoRoot otherwise.
	SuperRoot string
}

// Detect finds the git repository containing path by walking up from it.
//
// Returns ErrNotInVCS if no .git directory or file is found.
func Detect(path string) (*Detection, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	current := absPath
	for {
		gitPath := filepath.Join(current, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			d := &Detection{RepoRoot: current, GitDir: gitPath, SuperRoot: current}
			if info.Mode().IsRegular() {
				// .git is a file: submodule or worktree
				d.Linked = true
				d.SuperRoot, d.GitDir, d.Submodule = resolveLinkedRoot(current, gitPath)
			}
			return d, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, ErrNotInVCS
		}
		current = parent
	}
}

// resolveLinkedRoot reads a .git file and returns the superproject root,
// the git directory it points at, and whether it is a submodule.
//
// The file contains a single line:
//
//	gitdir: ../.git/modules/midi-presets
//
// Submodule git directories live under <super>/.git/modules/, worktree git
// directories under <main>/.git/worktrees/.
func resolveLinkedRoot(checkout, gitFile string) (string, string, bool) {
	content, err := os.ReadFile(gitFile)
	if err != nil {
		return checkout, gitFile, false
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return checkout, gitFile, false
	}

	gitDir := strings.TrimPrefix(line, "gitdir: ")
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(checkout, gitDir)
	}
	gitDir = filepath.Clean(gitDir)

	sep := string(filepath.Separator)
	if idx := strings.Index(gitDir, sep+"modules"+sep); idx > 0 {
		return filepath.Dir(gitDir[:idx]), gitDir, true
	}
	if idx := strings.Index(gitDir, sep+"worktrees"+sep); idx > 0 {
		return filepath.Dir(gitDir[:idx]), gitDir, false
	}
	return checkout, gitDir, false
}

// IsGitAvailable checks if the git command is on PATH.
func IsGitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}
